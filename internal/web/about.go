package web

import (
	"net/http"
	"runtime"
	"runtime/debug"
	"time"
)

type AboutResponse struct {
	Service    string `json:"service"`
	NowUTC     string `json:"now_utc"`
	GoVersion  string `json:"go_version"`
	ModulePath string `json:"module_path,omitempty"`
	Version    string `json:"version,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Dirty      bool   `json:"dirty,omitempty"`
	BuildTime  string `json:"build_time,omitempty"`
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}

	resp := AboutResponse{
		Service:   "airbrief",
		NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		GoVersion: runtime.Version(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		resp.ModulePath = bi.Main.Path
		resp.Version = bi.Main.Version
		for _, set := range bi.Settings {
			switch set.Key {
			case "vcs.revision":
				resp.Commit = set.Value
			case "vcs.modified":
				resp.Dirty = set.Value == "true"
			case "vcs.time":
				resp.BuildTime = set.Value
			}
		}
	}

	respondData(w, resp)
}
