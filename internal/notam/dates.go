package notam

import (
	"regexp"
	"strings"
	"time"
)

// PermanentEnd stands in for a "PERM" end date so permanent records sort and
// compare after any real timestamp.
var PermanentEnd = time.Date(9999, time.December, 31, 23, 59, 0, 0, time.UTC)

// compactLayout is the ICAO item B)/C) timestamp form: YYMMDDHHMM, UTC.
const compactLayout = "0601021504"

var (
	itemBRe = regexp.MustCompile(`B\)\s*(\d{10})`)
	itemCRe = regexp.MustCompile(`C\)\s*(\d{10}|PERM)`)
)

// ParseTime parses the timestamp spellings seen in upstream feeds: the
// 10-digit compact form, RFC 3339, and the two space-separated forms some
// providers emit. The zero time reports failure; callers treat it as
// "unknown" rather than an error.
func ParseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if len(s) == 10 && isDigits(s) {
		t, err := time.ParseInLocation(compactLayout, s, time.UTC)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// DatesFromText pulls the effective window out of the B) and C) items of a
// message body. A missing or unparsable item yields the zero time for that
// side; C) PERM yields PermanentEnd.
func DatesFromText(text string) (start, end time.Time) {
	if m := itemBRe.FindStringSubmatch(text); m != nil {
		start = ParseTime(m[1])
	}
	if m := itemCRe.FindStringSubmatch(text); m != nil {
		if m[1] == "PERM" {
			end = PermanentEnd
		} else {
			end = ParseTime(m[1])
		}
	}
	return start, end
}
