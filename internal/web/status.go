package web

import (
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/cmkoo/airbrief/internal/feed"
	"github.com/cmkoo/airbrief/internal/ingest"
	"github.com/cmkoo/airbrief/internal/store"
)

type StatusResponse struct {
	Service      string           `json:"service"`
	NowUTC       string           `json:"now_utc"`
	UptimeSec    int64            `json:"uptime_sec"`
	Ingest       *ingest.Snapshot `json:"ingest,omitempty"`
	Feed         *feed.Snapshot   `json:"feed,omitempty"`
	LiveAircraft int              `json:"live_aircraft"`
	Store        *StoreStatus     `json:"store,omitempty"`
	Disk         *DiskStatus      `json:"disk,omitempty"`
	LocalAddrs   []string         `json:"local_addrs,omitempty"`
}

type StoreStatus struct {
	Path    string             `json:"path"`
	Buckets []store.BucketStats `json:"buckets"`
}

type DiskStatus struct {
	Path       string `json:"path"`
	TotalBytes uint64 `json:"total_bytes,omitempty"`
	FreeBytes  uint64 `json:"free_bytes,omitempty"`
	AvailBytes uint64 `json:"avail_bytes,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireGET(w, r) {
		return
	}
	now := time.Now().UTC()

	resp := StatusResponse{
		Service:    "airbrief",
		NowUTC:     now.Format(time.RFC3339Nano),
		LocalAddrs: localInterfaceAddrs(),
	}
	if !s.Start.IsZero() {
		resp.UptimeSec = int64(now.Sub(s.Start).Seconds())
	}
	if s.IngestSnapshot != nil {
		snap := s.IngestSnapshot()
		resp.Ingest = &snap
	}
	if s.FeedSnapshot != nil {
		snap := s.FeedSnapshot()
		resp.Feed = &snap
	}
	if s.Buffer != nil {
		resp.LiveAircraft = s.Buffer.Count()
	}
	if s.Store != nil {
		st := &StoreStatus{Path: s.Store.Path()}
		if buckets, err := s.Store.Stats(); err == nil {
			st.Buckets = buckets
		}
		resp.Store = st
	}
	if s.DataDir != "" {
		resp.Disk = snapshotDisk(s.DataDir)
	}

	respondData(w, resp)
}

// localInterfaceAddrs lists the machine's IPv4 addresses on up, non-loopback
// interfaces, for finding the API from another device on the LAN.
func localInterfaceAddrs() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	out := make([]string, 0, 8)
	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil || ip4.IsLoopback() || ip4.IsLinkLocalUnicast() {
				continue
			}
			out = append(out, iface.Name+": "+ip4.String())
		}
	}

	sort.Strings(out)
	return out
}
