package ubikais

import (
	"encoding/json"
	"strings"
)

// Direction selects a flight board side.
type Direction string

const (
	Departures Direction = "dep"
	Arrivals   Direction = "arr"
)

// ParseDirection maps a query string onto a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dep", "departure", "departures":
		return Departures, true
	case "arr", "arrival", "arrivals":
		return Arrivals, true
	}
	return "", false
}

// Flight is one row of an aerodrome departure or arrival board.
//
// The portal has served several field spellings for the same values over
// time; decoding is tolerant in the same way notam.Record is. Times stay as
// the portal's strings, untouched.
type Flight struct {
	Callsign     string          `json:"callsign"`
	Number       string          `json:"number,omitempty"`
	AircraftType string          `json:"aircraft_type,omitempty"`
	Registration string          `json:"registration,omitempty"`
	Departure    string          `json:"departure,omitempty"`
	Arrival      string          `json:"arrival,omitempty"`
	Alternate    string          `json:"alternate,omitempty"`
	EOBT         string          `json:"eobt,omitempty"`
	ATD          string          `json:"atd,omitempty"`
	STA          string          `json:"sta,omitempty"`
	ETA          string          `json:"eta,omitempty"`
	ATA          string          `json:"ata,omitempty"`
	Rules        string          `json:"rules,omitempty"`
	Route        string          `json:"route,omitempty"`
	CruiseAlt    string          `json:"cruise_alt,omitempty"`
	CruiseSpeed  string          `json:"cruise_speed,omitempty"`
	Status       string          `json:"status,omitempty"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

type flightJSON struct {
	Callsign  string `json:"callsign"`
	ACID      string `json:"acid"`
	FltNo     string `json:"fltNo"`
	Number    string `json:"number"`
	FlightNum string `json:"flightNumber"`

	AircraftType  string `json:"aircraft_type"`
	AircraftType2 string `json:"aircraftType"`
	ACType        string `json:"acType"`

	Registration string `json:"registration"`
	Reg          string `json:"reg"`

	Departure string `json:"departure"`
	DepAd     string `json:"depAd"`
	Adep      string `json:"adep"`

	Arrival string `json:"arrival"`
	ArrAd   string `json:"arrAd"`
	Ades    string `json:"ades"`

	Alternate string `json:"alternate"`
	AltnAd    string `json:"altnAd"`

	EOBT    string `json:"eobt"`
	STD     string `json:"std"`
	DepTime string `json:"depTime"`
	ATD     string `json:"atd"`
	STA     string `json:"sta"`
	ArrTime string `json:"arrTime"`
	ETA     string `json:"eta"`
	ATA     string `json:"ata"`

	Rules    string `json:"rules"`
	FltRules string `json:"fltRules"`

	Route string `json:"route"`

	CruiseAlt string `json:"cruise_alt"`
	RFL       string `json:"rfl"`

	CruiseSpeed string `json:"cruise_speed"`
	Speed       string `json:"speed"`

	Status string `json:"status"`

	Raw json.RawMessage `json:"raw"`
}

func (f *Flight) UnmarshalJSON(data []byte) error {
	var raw flightJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = Flight{
		Callsign:     firstTrimmed(raw.Callsign, raw.ACID, raw.FltNo),
		Number:       firstTrimmed(raw.Number, raw.FlightNum, raw.FltNo),
		AircraftType: firstTrimmed(raw.AircraftType, raw.AircraftType2, raw.ACType),
		Registration: firstTrimmed(raw.Registration, raw.Reg),
		Departure:    firstTrimmed(raw.Departure, raw.DepAd, raw.Adep),
		Arrival:      firstTrimmed(raw.Arrival, raw.ArrAd, raw.Ades),
		Alternate:    firstTrimmed(raw.Alternate, raw.AltnAd),
		EOBT:         firstTrimmed(raw.EOBT, raw.STD, raw.DepTime),
		ATD:          strings.TrimSpace(raw.ATD),
		STA:          firstTrimmed(raw.STA, raw.ArrTime),
		ETA:          strings.TrimSpace(raw.ETA),
		ATA:          strings.TrimSpace(raw.ATA),
		Rules:        firstTrimmed(raw.Rules, raw.FltRules),
		Route:        strings.TrimSpace(raw.Route),
		CruiseAlt:    firstTrimmed(raw.CruiseAlt, raw.RFL),
		CruiseSpeed:  firstTrimmed(raw.CruiseSpeed, raw.Speed),
		Status:       strings.TrimSpace(raw.Status),
	}
	// A row that already went through the store carries its original raw
	// payload; keep that rather than nesting envelopes.
	if len(raw.Raw) > 0 {
		f.Raw = raw.Raw
	} else {
		f.Raw = append(json.RawMessage(nil), data...)
	}
	return nil
}

func firstTrimmed(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// ParseFlights decodes a board response. It accepts the portal's
// {"records":[...]} envelope as well as a bare array, and skips rows that do
// not decode or carry no callsign. Like notam.ParseRecords it is tolerant:
// a response with no usable rows yields nil, not an error.
func ParseFlights(data []byte) []Flight {
	var envelope struct {
		Records []json.RawMessage `json:"records"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil {
		if len(envelope.Records) > 0 {
			return decodeFlights(envelope.Records)
		}
		if len(envelope.Data) > 0 {
			return decodeFlights(envelope.Data)
		}
	}

	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		return decodeFlights(list)
	}
	return nil
}

func decodeFlights(raws []json.RawMessage) []Flight {
	out := make([]Flight, 0, len(raws))
	for _, r := range raws {
		var f Flight
		if err := json.Unmarshal(r, &f); err != nil {
			continue
		}
		if f.Callsign == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}
