package nmea

import (
	"strings"

	"github.com/benbjohnson/clock"
)

type angle struct {
	whole      uint16
	billionths uint32
	deg        float64
	negative   bool
}

// parseDegrees converts a (d)ddmm.mmmm term into whole degrees, the degree
// fraction in billionths, and the unsigned decimal value.
//
// The fraction goes through integer ten-millionths of a minute so that equal
// input text always yields equal billionths regardless of float rounding.
func parseDegrees(term string) (whole uint16, billionths uint32, deg float64, ok bool) {
	left, frac := term, ""
	if dot := strings.IndexByte(term, '.'); dot >= 0 {
		left, frac = term[:dot], term[dot+1:]
	}
	v, ok := parseUint(left)
	if !ok || v/100 > 0xFFFF {
		return 0, 0, 0, false
	}

	minutes := uint64(v % 100)
	mult := uint64(10000000)
	tenMillionths := minutes * mult
	for i := 0; i < len(frac); i++ {
		if !isDigit(frac[i]) {
			continue
		}
		mult /= 10
		tenMillionths += uint64(frac[i]-'0') * mult
	}

	whole = uint16(v / 100)
	billionths = uint32((5*tenMillionths + 1) / 3)
	deg = float64(whole) + toFixed(float64(billionths)/1e9, 6)
	return whole, billionths, deg, true
}

// Degrees is one latitude or longitude. The hemisphere arrives in its own
// term and is folded in only when the value is committed.
type Degrees struct{ slot[angle] }

func (d *Degrees) set(term string) {
	whole, billionths, deg, ok := parseDegrees(term)
	d.stage(angle{whole: whole, billionths: billionths, deg: deg}, ok)
}

func (d *Degrees) setSign(negative bool) {
	d.staged.negative = negative
}

// WholeDegrees is the unsigned integer part.
func (d *Degrees) WholeDegrees() uint16 { return d.get().whole }

// Billionths is the unsigned fractional part in billionths of a degree.
func (d *Degrees) Billionths() uint32 { return d.get().billionths }

// Negative reports a south or west hemisphere.
func (d *Degrees) Negative() bool { return d.get().negative }

// Degrees is the signed decimal value.
func (d *Degrees) Degrees() float64 {
	a := d.get()
	if a.negative {
		return -a.deg
	}
	return a.deg
}

// Location pairs latitude and longitude so both always come from the same
// sentence. It is valid only when both halves are.
type Location struct {
	fieldState
	Latitude  Degrees
	Longitude Degrees
}

// Lat is the signed latitude in decimal degrees.
func (l *Location) Lat() float64 {
	l.updated = false
	return l.Latitude.Degrees()
}

// Lng is the signed longitude in decimal degrees.
func (l *Location) Lng() float64 {
	l.updated = false
	return l.Longitude.Degrees()
}

func (l *Location) setClock(clk clock.Clock) {
	l.fieldState.setClock(clk)
	l.Latitude.setClock(clk)
	l.Longitude.setClock(clk)
}

func (l *Location) commit() {
	l.Latitude.commit()
	l.Longitude.commit()
	l.stamp(l.Latitude.valid && l.Longitude.valid)
}
