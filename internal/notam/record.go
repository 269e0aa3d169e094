package notam

import (
	"encoding/json"
	"strings"
)

// Record is a NOTAM normalized from an upstream provider. Providers disagree
// on field spellings; UnmarshalJSON accepts the common variants and keeps the
// original object bytes in Raw.
type Record struct {
	Number         string          `json:"number"`
	Location       string          `json:"location,omitempty"`
	Series         string          `json:"series,omitempty"`
	QCode          string          `json:"q_code,omitempty"`
	Text           string          `json:"text"`
	EffectiveStart string          `json:"effective_start,omitempty"`
	EffectiveEnd   string          `json:"effective_end,omitempty"`
	Schedule       string          `json:"schedule,omitempty"`
	IssuedAt       string          `json:"issued_at,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// recordJSON carries every field spelling seen across providers. First
// non-empty wins.
type recordJSON struct {
	Number      string `json:"number"`
	NotamNumber string `json:"notamNumber"`
	NotamNo     string `json:"notamNo"`
	NotamNoS    string `json:"notam_number"`
	NotamID     string `json:"notamId"`
	NotamIDS    string `json:"notam_id"`

	Location     string `json:"location"`
	Ad           string `json:"ad"`
	ICAOLocation string `json:"icaoLocation"`
	Site         string `json:"site"`

	Series string `json:"series"`

	QCode  string `json:"qCode"`
	QCodeS string `json:"q_code"`

	Text      string `json:"text"`
	FullText  string `json:"fullText"`
	FullTextS string `json:"full_text"`
	NotamText string `json:"notamText"`
	EText     string `json:"eText"`
	Message   string `json:"message"`

	EffectiveStart string `json:"effectiveStart"`
	EffStartS      string `json:"effective_start"`
	ValidFrom      string `json:"validFrom"`
	ValidFromS     string `json:"valid_from"`
	FromDt         string `json:"fromDt"`

	EffectiveEnd string `json:"effectiveEnd"`
	EffEndS      string `json:"effective_end"`
	ValidTo      string `json:"validTo"`
	ValidToS     string `json:"valid_to"`
	ToDt         string `json:"toDt"`

	Schedule string `json:"schedule"`

	IssuedAt string `json:"issued_at"`
	Issued   string `json:"issued"`

	Raw json.RawMessage `json:"raw"`
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var s recordJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Record{
		Number:         strings.TrimSpace(firstNonEmpty(s.Number, s.NotamNumber, s.NotamNo, s.NotamNoS, s.NotamID, s.NotamIDS)),
		Location:       strings.TrimSpace(firstNonEmpty(s.Location, s.Ad, s.ICAOLocation, s.Site)),
		Series:         strings.TrimSpace(s.Series),
		QCode:          strings.TrimSpace(firstNonEmpty(s.QCode, s.QCodeS)),
		Text:           firstNonEmpty(s.Text, s.FullText, s.FullTextS, s.NotamText, s.EText, s.Message),
		EffectiveStart: strings.TrimSpace(firstNonEmpty(s.EffectiveStart, s.EffStartS, s.ValidFrom, s.ValidFromS, s.FromDt)),
		EffectiveEnd:   strings.TrimSpace(firstNonEmpty(s.EffectiveEnd, s.EffEndS, s.ValidTo, s.ValidToS, s.ToDt)),
		Schedule:       strings.TrimSpace(s.Schedule),
		IssuedAt:       strings.TrimSpace(firstNonEmpty(s.IssuedAt, s.Issued)),
	}
	// Re-encoded records carry the provider object in "raw"; fresh provider
	// objects are their own raw form.
	if len(s.Raw) > 0 {
		r.Raw = s.Raw
	} else {
		r.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ParseRecords parses a provider response that contains NOTAM records in one
// of the usual shapes and returns the records it could decode.
//
// It is intentionally tolerant: unknown fields are ignored and elements that
// fail to decode are skipped (not an error) so one bad record cannot sink a
// whole batch.
func ParseRecords(raw json.RawMessage) []Record {
	// Either:
	// 1) {"records":[{...},{...}], "total": n}
	// 2) {"status":"success","data":[{...}]}
	// 3) {"items":[{...}]} or {"notams":[{...}]}
	// 4) [{...},{...}]
	// 5) {...} single record
	var wrap struct {
		Records []json.RawMessage `json:"records"`
		Data    []json.RawMessage `json:"data"`
		Items   []json.RawMessage `json:"items"`
		Notams  []json.RawMessage `json:"notams"`
	}
	if err := json.Unmarshal(raw, &wrap); err == nil {
		for _, elems := range [][]json.RawMessage{wrap.Records, wrap.Data, wrap.Items, wrap.Notams} {
			if len(elems) > 0 {
				return decodeRecords(elems)
			}
		}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return decodeRecords(list)
	}

	var single Record
	if err := json.Unmarshal(raw, &single); err == nil && single.Text != "" {
		return []Record{single}
	}
	return nil
}

func decodeRecords(elems []json.RawMessage) []Record {
	out := make([]Record, 0, len(elems))
	for _, e := range elems {
		var rec Record
		if err := json.Unmarshal(e, &rec); err != nil {
			continue
		}
		if rec.Text == "" && rec.Number == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}
