package ubikais

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const testRecords = `{"records":[
	{"notamId":"A1045/24","ad":"RKSS","eText":"A1045/24 NOTAMN Q) RKRR/QMRLC B) 2401010000 C) 2406302359","fromDt":"2401010000","toDt":"2406302359"},
	{"notamId":"A1046/24","eText":"A1046/24 NOTAMN RWY 14L/32R CLSD B) 2401010000 C) PERM"}
]}`

// newPortal builds a fake UBIKAIS that requires the browser login flow
// before serving grid responses. gridBody decides status and body per grid
// hit, counted across all grid endpoints.
func newPortal(t *testing.T, logins *int32, gridBody func(hit int) (int, string)) *httptest.Server {
	t.Helper()

	var gridHits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/common/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "seed"})
	})
	mux.HandleFunc("/common/loginProc", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("loginProc method=%s want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error: %v", err)
		}
		if r.PostFormValue("userId") != "tester" || r.PostFormValue("userPw") != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostFormValue("systemId") != "sysUbikais" {
			t.Errorf("systemId=%q want sysUbikais", r.PostFormValue("systemId"))
		}
		atomic.AddInt32(logins, 1)
		http.SetCookie(w, &http.Cookie{Name: "SESSION", Value: "ok"})
	})
	mux.HandleFunc("/sysUbikais/biz/main.ubikais", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("SESSION"); err != nil || c.Value != "ok" {
			fmt.Fprint(w, "<html>please sign in</html>")
			return
		}
		fmt.Fprint(w, "<html><a href='#'>Logout</a></html>")
	})
	grid := func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("grid request missing X-Requested-With")
		}
		if c, err := r.Cookie("SESSION"); err != nil || c.Value != "ok" {
			fmt.Fprint(w, "<html>please sign in</html>")
			return
		}
		status, body := gridBody(int(atomic.AddInt32(&gridHits, 1)))
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
	mux.HandleFunc("/sysUbikais/biz/nps/selectNotamRecAd.fois", grid)
	mux.HandleFunc("/sysUbikais/biz/nps/selectNotamRecFir.fois", grid)
	mux.HandleFunc("/main/selectIfr.fois", grid)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func alwaysRecords(int) (int, string) { return http.StatusOK, testRecords }

func testClient(t *testing.T, baseURL string, series ...string) *Client {
	t.Helper()
	if len(series) == 0 {
		series = []string{"A"}
	}
	c, err := New(Config{
		BaseURL:    baseURL,
		Username:   "tester",
		Password:   "secret",
		Series:     series,
		RatePerSec: 1000,
	}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error without credentials")
	}
	if _, err := New(Config{Username: "only"}, nil); err == nil {
		t.Fatalf("expected error without password")
	}
}

func TestNOTAMs_LogsInThenFetches(t *testing.T) {
	var logins int32
	srv := newPortal(t, &logins, alwaysRecords)
	c := testClient(t, srv.URL)

	recs, err := c.NOTAMs(context.Background(), "rkss")
	if err != nil {
		t.Fatalf("NOTAMs() error: %v", err)
	}
	if atomic.LoadInt32(&logins) != 1 {
		t.Fatalf("logins=%d want 1", logins)
	}
	if len(recs) != 2 {
		t.Fatalf("records=%d want 2", len(recs))
	}
	if recs[0].Number != "A1045/24" || recs[0].Location != "RKSS" {
		t.Fatalf("first record=%+v", recs[0])
	}
	// The second record has no location field; it inherits the aerodrome.
	if recs[1].Location != "RKSS" {
		t.Fatalf("location=%q want RKSS", recs[1].Location)
	}

	// A second call reuses the session.
	if _, err := c.NOTAMs(context.Background(), "RKPC"); err != nil {
		t.Fatalf("NOTAMs() second call error: %v", err)
	}
	if atomic.LoadInt32(&logins) != 1 {
		t.Fatalf("logins=%d want 1 after session reuse", logins)
	}
}

func TestNOTAMs_DedupesAcrossSeries(t *testing.T) {
	var logins int32
	srv := newPortal(t, &logins, alwaysRecords)
	c := testClient(t, srv.URL, "A", "C")

	recs, err := c.NOTAMs(context.Background(), "RKSS")
	if err != nil {
		t.Fatalf("NOTAMs() error: %v", err)
	}
	// Both series return the same two numbers; they must appear once.
	if len(recs) != 2 {
		t.Fatalf("records=%d want 2", len(recs))
	}
}

func TestNOTAMs_ReloginOnExpiredSession(t *testing.T) {
	var logins int32
	srv := newPortal(t, &logins, func(hit int) (int, string) {
		if hit == 1 {
			// Session dropped server-side: grid answers with the login page.
			return http.StatusOK, "<html>please sign in</html>"
		}
		return http.StatusOK, testRecords
	})
	c := testClient(t, srv.URL)

	recs, err := c.NOTAMs(context.Background(), "RKSS")
	if err != nil {
		t.Fatalf("NOTAMs() error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records=%d want 2", len(recs))
	}
	if atomic.LoadInt32(&logins) != 2 {
		t.Fatalf("logins=%d want 2 (initial + relogin)", logins)
	}
}

func TestNOTAMs_RetriesServerError(t *testing.T) {
	var logins int32
	srv := newPortal(t, &logins, func(hit int) (int, string) {
		if hit == 1 {
			return http.StatusInternalServerError, "upstream hiccup"
		}
		return http.StatusOK, testRecords
	})
	c := testClient(t, srv.URL)

	recs, err := c.NOTAMs(context.Background(), "RKSS")
	if err != nil {
		t.Fatalf("NOTAMs() error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("records=%d want 2 after retry", len(recs))
	}
}

func TestFIRNOTAMs_UsesFIRLocation(t *testing.T) {
	var logins int32
	srv := newPortal(t, &logins, func(int) (int, string) {
		return http.StatusOK, `{"records":[{"notamId":"Z0100/24","eText":"Z0100/24 NOTAMN B) 2401010000 C) 2412312359"}]}`
	})
	c := testClient(t, srv.URL)

	recs, err := c.FIRNOTAMs(context.Background())
	if err != nil {
		t.Fatalf("FIRNOTAMs() error: %v", err)
	}
	if len(recs) != 1 || recs[0].Location != "RKRR" {
		t.Fatalf("records=%+v want one RKRR record", recs)
	}
}

func TestFlights_ParsesBoard(t *testing.T) {
	var logins int32
	srv := newPortal(t, &logins, func(int) (int, string) {
		return http.StatusOK, `{"records":[
			{"acid":"KAL123","acType":"B738","depAd":"RKSS","arrAd":"RKPC","std":"0930","eta":"1040","reg":"HL8321"},
			{"acid":"","acType":"A320"}
		]}`
	})
	c := testClient(t, srv.URL)

	flights, err := c.Flights(context.Background(), "RKSS", Departures)
	if err != nil {
		t.Fatalf("Flights() error: %v", err)
	}
	if len(flights) != 1 {
		t.Fatalf("flights=%d want 1 (callsign-less row skipped)", len(flights))
	}
	f := flights[0]
	if f.Callsign != "KAL123" || f.AircraftType != "B738" {
		t.Fatalf("flight=%+v", f)
	}
	if f.Departure != "RKSS" || f.Arrival != "RKPC" {
		t.Fatalf("route=%s-%s want RKSS-RKPC", f.Departure, f.Arrival)
	}
	if f.EOBT != "0930" || f.Registration != "HL8321" {
		t.Fatalf("times/reg=%+v", f)
	}
}

func TestFlights_RejectsUnknownDirection(t *testing.T) {
	c := testClient(t, "http://127.0.0.1:0")
	if _, err := c.Flights(context.Background(), "RKSS", Direction("sideways")); err == nil {
		t.Fatalf("expected error for unknown direction")
	}
}
