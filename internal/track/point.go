package track

import "encoding/json"

// feetPerMeter converts meter altitudes onto the feet scale everything else
// uses.
const feetPerMeter = 3.28084

// Point is one position sample for one aircraft. Every field except the
// position itself is optional; sources disagree on which of the time and
// altitude spellings they fill in, so consumers go through TimestampMs and
// AltitudeFt instead of reading fields directly.
type Point struct {
	Lat      float64  `json:"lat" msgpack:"lat"`
	Lon      float64  `json:"lon" msgpack:"lon"`
	TimeSec  *float64 `json:"time,omitempty" msgpack:"time,omitempty"`
	StampMs  *float64 `json:"timestamp,omitempty" msgpack:"timestamp,omitempty"`
	AltFt    *float64 `json:"altitude_ft,omitempty" msgpack:"altitude_ft,omitempty"`
	AltM     *float64 `json:"altitude_m,omitempty" msgpack:"altitude_m,omitempty"`
	GroundKt *float64 `json:"ground_kt,omitempty" msgpack:"ground_kt,omitempty"`
	OnGround *bool    `json:"on_ground,omitempty" msgpack:"on_ground,omitempty"`
}

// pointJSON carries the field spellings seen across sources. First non-nil
// wins.
type pointJSON struct {
	Lat       *float64 `json:"lat"`
	Latitude  *float64 `json:"latitude"`
	Lon       *float64 `json:"lon"`
	Lng       *float64 `json:"lng"`
	Longitude *float64 `json:"longitude"`

	TimeSec *float64 `json:"time"`
	StampMs *float64 `json:"timestamp"`

	AltFt      *float64 `json:"altitude_ft"`
	AltFtCamel *float64 `json:"altitudeFt"`
	AltFtShort *float64 `json:"alt_ft"`
	AltM       *float64 `json:"altitude_m"`
	AltMCamel  *float64 `json:"altitudeM"`

	GroundKt *float64 `json:"ground_kt"`
	GS       *float64 `json:"gs"`

	OnGround      *bool `json:"on_ground"`
	OnGroundCamel *bool `json:"onGround"`
	Gnd           *bool `json:"gnd"`
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var s pointJSON
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = Point{
		TimeSec:  s.TimeSec,
		StampMs:  s.StampMs,
		AltFt:    firstFloat(s.AltFt, s.AltFtCamel, s.AltFtShort),
		AltM:     firstFloat(s.AltM, s.AltMCamel),
		GroundKt: firstFloat(s.GroundKt, s.GS),
		OnGround: firstBool(s.OnGround, s.OnGroundCamel, s.Gnd),
	}
	if v := firstFloat(s.Lat, s.Latitude); v != nil {
		p.Lat = *v
	}
	if v := firstFloat(s.Lon, s.Lng, s.Longitude); v != nil {
		p.Lon = *v
	}
	return nil
}

func firstFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstBool(vals ...*bool) *bool {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

// TimestampMs is the canonical timestamp in epoch milliseconds. A seconds
// field wins over a milliseconds field; 0 means unknown and sorts first.
func (p Point) TimestampMs() int64 {
	if p.TimeSec != nil {
		return int64(*p.TimeSec * 1000)
	}
	if p.StampMs != nil {
		return int64(*p.StampMs)
	}
	return 0
}

// AltitudeFt is the canonical altitude in feet, converting a meters-only
// sample. 0 when the point carries no altitude at all; HasAltitude tells the
// two apart.
func (p Point) AltitudeFt() float64 {
	if p.AltFt != nil {
		return *p.AltFt
	}
	if p.AltM != nil {
		return *p.AltM * feetPerMeter
	}
	return 0
}

func (p Point) HasAltitude() bool {
	return p.AltFt != nil || p.AltM != nil
}

func (p Point) Grounded() bool {
	return p.OnGround != nil && *p.OnGround
}
