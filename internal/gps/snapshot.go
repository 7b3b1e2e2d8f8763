package gps

import (
	"fmt"
	"time"

	"gpsfeed/internal/nmea"
)

type Snapshot struct {
	Enabled  bool `json:"enabled"`
	Valid    bool `json:"valid"`
	FixStale bool `json:"fix_stale"`

	Source string `json:"source,omitempty"`
	Addr   string `json:"addr,omitempty"`
	Device string `json:"device,omitempty"`
	Baud   int    `json:"baud,omitempty"`

	LatDeg float64 `json:"lat_deg,omitempty"`
	LonDeg float64 `json:"lon_deg,omitempty"`

	// Date is YYYY-MM-DD and Time HH:MM:SS.cc, both UTC as sent by the receiver.
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`

	GroundKt   *float64 `json:"ground_kt,omitempty"`
	TrackDeg   *float64 `json:"track_deg,omitempty"`
	AltM       *float64 `json:"alt_m,omitempty"`
	AltFeet    *float64 `json:"alt_feet,omitempty"`
	Satellites *int     `json:"satellites,omitempty"`
	HDOP       *float64 `json:"hdop,omitempty"`
	FixAgeSec  float64  `json:"fix_age_sec,omitempty"`

	Custom map[string]CustomValue `json:"custom,omitempty"`
	Sky    []SkySat               `json:"sky,omitempty"`

	Stats nmea.Stats `json:"stats"`

	LastFixUTC string `json:"last_fix_utc,omitempty"`
	LastError  string `json:"last_error,omitempty"`

	fixAt time.Time
}

type CustomValue struct {
	Sentence string   `json:"sentence"`
	Term     int      `json:"term"`
	Text     string   `json:"text"`
	Numeric  *float64 `json:"numeric,omitempty"`
	AgeSec   float64  `json:"age_sec"`
}

// buildSnapshot reads the decoder, so only the feedMu holder may call it.
func (s *Service) buildSnapshot() Snapshot {
	d := s.dec
	out := s.base
	out.Stats = d.Stats()

	if d.Location.IsValid() {
		out.Valid = true
		out.LatDeg = d.Location.Lat()
		out.LonDeg = d.Location.Lng()
		out.fixAt = s.clk.Now().Add(-d.Location.Age())
	}
	// Only RMC commits a date, so it is paired with that sentence's time. A
	// later GGA time would pull the stamp back a day across midnight.
	if d.Date.IsUpdated() && d.Time.IsValid() {
		s.lastFixAt = time.Date(d.Date.Year(), time.Month(d.Date.Month()), d.Date.Day(),
			d.Time.Hour(), d.Time.Minute(), d.Time.Second(), d.Time.Centisecond()*int(10*time.Millisecond), time.UTC)
	}
	if !s.lastFixAt.IsZero() {
		out.LastFixUTC = s.lastFixAt.Format(time.RFC3339Nano)
	}
	if d.Date.IsValid() {
		out.Date = fmt.Sprintf("%04d-%02d-%02d", d.Date.Year(), d.Date.Month(), d.Date.Day())
	}
	if d.Time.IsValid() {
		out.Time = fmt.Sprintf("%02d:%02d:%02d.%02d", d.Time.Hour(), d.Time.Minute(), d.Time.Second(), d.Time.Centisecond())
	}
	if d.Speed.IsValid() {
		v := d.Speed.Knots()
		out.GroundKt = &v
	}
	if d.Course.IsValid() {
		v := d.Course.Degrees()
		out.TrackDeg = &v
	}
	if d.Altitude.IsValid() {
		m := d.Altitude.Meters()
		ft := d.Altitude.Feet()
		out.AltM = &m
		out.AltFeet = &ft
	}
	if d.Satellites.IsValid() {
		v := d.Satellites.Value()
		out.Satellites = &v
	}
	if d.HDOP.IsValid() {
		v := d.HDOP.Value()
		out.HDOP = &v
	}

	for _, nc := range s.customs {
		if !nc.c.IsValid() {
			continue
		}
		if out.Custom == nil {
			out.Custom = make(map[string]CustomValue, len(s.customs))
		}
		cv := CustomValue{
			Sentence: nc.c.Sentence(),
			Term:     nc.c.Term(),
			Text:     nc.c.Value(),
			AgeSec:   nc.c.Age().Seconds(),
		}
		if n, err := nc.c.Numeric(); err == nil && n.IsValid() {
			v := n.Value()
			cv.Numeric = &v
		}
		out.Custom[nc.name] = cv
	}

	if s.sky != nil {
		out.Sky = s.sky.list()
	}
	return out
}
