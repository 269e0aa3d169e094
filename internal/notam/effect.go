package notam

import (
	"regexp"
	"strings"
)

// Effect is the lifecycle action a NOTAM declares in its header token:
// NOTAMN issues a new notice, NOTAMR replaces an earlier one, NOTAMC cancels
// one.
type Effect string

const (
	EffectNew     Effect = "N"
	EffectReplace Effect = "R"
	EffectCancel  Effect = "C"
)

// The effect token sits in the header, never past the first couple of lines.
// Scanning only a bounded window keeps free text in items E)..G) from
// misclassifying a record that merely mentions another NOTAM.
const headerWindow = 200

var (
	cancelTokenRe  = regexp.MustCompile(`NOTAMC(\s|$)`)
	replaceTokenRe = regexp.MustCompile(`NOTAMR(\s|$)`)
	newTokenRe     = regexp.MustCompile(`NOTAMN(\s|$)`)

	cancelRefRe = regexp.MustCompile(`NOTAM[CR]\s+([A-Z]\d{4}/\d{2})`)
)

// ClassifyEffect reads the effect token out of the message header. Exact
// tokens (followed by whitespace or end of text) win over bare substrings;
// within each pass cancel beats replace beats new. Records with no
// recognizable token count as new.
func ClassifyEffect(text string) Effect {
	if text == "" {
		return EffectNew
	}
	header := text
	if len(header) > headerWindow {
		header = header[:headerWindow]
	}

	switch {
	case cancelTokenRe.MatchString(header):
		return EffectCancel
	case replaceTokenRe.MatchString(header):
		return EffectReplace
	case newTokenRe.MatchString(header):
		return EffectNew
	}
	switch {
	case strings.Contains(header, "NOTAMC"):
		return EffectCancel
	case strings.Contains(header, "NOTAMR"):
		return EffectReplace
	}
	return EffectNew
}

// CancelledReference extracts the number of the NOTAM a replacement or
// cancellation points back at ("A0123/24 NOTAMC A0101/24" refers to
// A0101/24). The second value is false when the text carries no reference.
func CancelledReference(text string) (string, bool) {
	m := cancelRefRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CancelledSet holds the numbers of records voided by a later replacement or
// cancellation within one batch. It is a pure derived value: rebuild it from
// the batch every time rather than carrying it across refreshes.
type CancelledSet map[string]struct{}

func (s CancelledSet) Has(number string) bool {
	_, ok := s[number]
	return ok
}

// BuildCancelledSet scans a whole batch and collects every number referenced
// by a replacing or cancelling record. Two passes over the data by
// construction: callers first build the set, then judge each record against
// it, so ordering within the batch never matters.
func BuildCancelledSet(records []Record) CancelledSet {
	set := make(CancelledSet)
	for _, rec := range records {
		switch ClassifyEffect(rec.Text) {
		case EffectReplace, EffectCancel:
			if ref, ok := CancelledReference(rec.Text); ok {
				set[ref] = struct{}{}
			}
		}
	}
	return set
}
