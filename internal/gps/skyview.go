package gps

import (
	"sort"

	"gpsfeed/internal/nmea"
)

// GSV talkers tracked by the sky view. GN is rare for GSV but some
// multi-constellation receivers emit it.
var skyTalkers = []string{"GPGSV", "GLGSV", "GAGSV", "GBGSV", "GNGSV"}

// satsPerGSV is how many satellite blocks one GSV sentence carries.
const satsPerGSV = 4

// SkySat is one satellite in view.
type SkySat struct {
	Talker       string   `json:"talker"`
	PRN          int      `json:"prn"`
	ElevationDeg *float64 `json:"elevation_deg,omitempty"`
	AzimuthDeg   *float64 `json:"azimuth_deg,omitempty"`
	SNR          *float64 `json:"snr_db,omitempty"`
}

type gsvFields struct {
	talker string

	total  *nmea.Custom
	msgNum *nmea.Custom
	inView *nmea.Custom

	prn  [satsPerGSV]*nmea.Custom
	elev [satsPerGSV]*nmea.Custom
	az   [satsPerGSV]*nmea.Custom
	snr  [satsPerGSV]*nmea.Custom
}

type skyKey struct {
	talker string
	prn    int
}

type skyEntry struct {
	sat   SkySat
	cycle int
}

// skyView assembles GSV sequences into a satellite table. A satellite
// missing from a complete sequence is dropped.
type skyView struct {
	sentences []*gsvFields
	sats      map[skyKey]*skyEntry
	cycle     map[string]int
	inCycle   map[string]bool
}

func newSkyView(d *nmea.Decoder) *skyView {
	v := &skyView{
		sats:    make(map[skyKey]*skyEntry),
		cycle:   make(map[string]int),
		inCycle: make(map[string]bool),
	}
	for _, name := range skyTalkers {
		g := &gsvFields{
			talker: name[:2],
			total:  d.Register(name, 1, true),
			msgNum: d.Register(name, 2, true),
			inView: d.Register(name, 3, true),
		}
		for i := 0; i < satsPerGSV; i++ {
			base := 4 + 4*i
			g.prn[i] = d.Register(name, base, true)
			g.elev[i] = d.Register(name, base+1, true)
			g.az[i] = d.Register(name, base+2, true)
			g.snr[i] = d.Register(name, base+3, true)
		}
		v.sentences = append(v.sentences, g)
	}
	return v
}

// readNumber consumes c's update and returns its numeric value.
func readNumber(c *nmea.Custom) (float64, bool) {
	_ = c.Value()
	n, err := c.Numeric()
	if err != nil || !n.IsValid() {
		return 0, false
	}
	return n.Value(), true
}

func numberPtr(c *nmea.Custom) *float64 {
	v, ok := readNumber(c)
	if !ok {
		return nil
	}
	return &v
}

// update folds in the GSV sentence that was just committed, if any.
func (v *skyView) update() {
	for _, g := range v.sentences {
		if !g.msgNum.IsUpdated() {
			continue
		}
		msg, okMsg := readNumber(g.msgNum)
		total, okTotal := readNumber(g.total)
		inView, okView := readNumber(g.inView)
		if !okMsg || !okTotal || !okView || msg < 1 {
			continue
		}

		if msg == 1 {
			v.cycle[g.talker]++
			v.inCycle[g.talker] = true
		}
		cycle := v.cycle[g.talker]

		// Trailing terms after the last satellite block (e.g. an NMEA 4.10
		// signal ID) must not be mistaken for a PRN.
		n := int(inView) - satsPerGSV*(int(msg)-1)
		if n > satsPerGSV {
			n = satsPerGSV
		}
		for i := 0; i < satsPerGSV; i++ {
			// Every slot is read so no update flag survives into the next sentence.
			fresh := g.prn[i].IsUpdated()
			prn, ok := readNumber(g.prn[i])
			sat := SkySat{
				Talker:       g.talker,
				PRN:          int(prn),
				ElevationDeg: numberPtr(g.elev[i]),
				AzimuthDeg:   numberPtr(g.az[i]),
				SNR:          numberPtr(g.snr[i]),
			}
			if i >= n || !fresh || !ok {
				continue
			}
			v.sats[skyKey{talker: g.talker, prn: sat.PRN}] = &skyEntry{sat: sat, cycle: cycle}
		}

		if msg == total && v.inCycle[g.talker] {
			for k, e := range v.sats {
				if k.talker == g.talker && e.cycle != cycle {
					delete(v.sats, k)
				}
			}
			v.inCycle[g.talker] = false
		}
	}
}

func (v *skyView) list() []SkySat {
	if len(v.sats) == 0 {
		return nil
	}
	out := make([]SkySat, 0, len(v.sats))
	for _, e := range v.sats {
		out = append(out, e.sat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Talker != out[j].Talker {
			return out[i].Talker < out[j].Talker
		}
		return out[i].PRN < out[j].PRN
	})
	return out
}
