package nmea

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

// MaxAge is what Age reports for a field that holds no valid value.
const MaxAge = time.Duration(math.MaxInt64)

// Field is the read side shared by every value a Decoder maintains.
type Field interface {
	// IsValid reports whether the last commit carried a parseable value.
	IsValid() bool
	// IsUpdated reports whether a commit happened since the value was last read.
	IsUpdated() bool
	// Age is the time since the last commit, or MaxAge when not valid.
	Age() time.Duration
}

type fieldState struct {
	clk        clock.Clock
	valid      bool
	updated    bool
	lastCommit time.Time
}

func (f *fieldState) IsValid() bool   { return f.valid }
func (f *fieldState) IsUpdated() bool { return f.updated }

func (f *fieldState) Age() time.Duration {
	if !f.valid {
		return MaxAge
	}
	return f.clk.Since(f.lastCommit)
}

func (f *fieldState) setClock(clk clock.Clock) { f.clk = clk }

func (f *fieldState) stamp(ok bool) {
	f.valid = ok
	f.updated = ok
	f.lastCommit = f.clk.Now()
}

// slot holds a staged and a committed value of one field. Only commit moves
// the staged value across.
type slot[T any] struct {
	fieldState
	staged   T
	stagedOK bool
	value    T
}

func (s *slot[T]) stage(v T, ok bool) {
	s.stagedOK = ok
	if ok {
		s.staged = v
	}
}

func (s *slot[T]) commit() {
	if s.stagedOK {
		s.value = s.staged
	}
	s.stamp(s.stagedOK)
}

func (s *slot[T]) get() T {
	s.updated = false
	return s.value
}

// Integer is an unsigned whole-number term such as a satellite count.
type Integer struct{ slot[int] }

func (i *Integer) Value() int { return i.get() }

func (i *Integer) set(term string) {
	v, ok := parseUint(term)
	i.stage(v, ok)
}

// Decimal is a signed decimal term.
type Decimal struct{ slot[float64] }

func (d *Decimal) Value() float64 { return d.get() }

func (d *Decimal) set(term string) {
	v, ok := parseDecimal(term)
	d.stage(v, ok)
}

// Date is a UTC date kept in its raw DDMMYY form.
type Date struct{ slot[int] }

// Value returns the raw DDMMYY number.
func (d *Date) Value() int { return d.get() }

// Year assumes the 2000s; NMEA only carries two digits.
func (d *Date) Year() int  { return 2000 + d.get()%100 }
func (d *Date) Month() int { return (d.get() / 100) % 100 }
func (d *Date) Day() int   { return d.get() / 10000 }

func (d *Date) set(term string) {
	v, ok := parseUint(term)
	d.stage(v, ok)
}

// Time is a UTC time of day kept as HHMMSSCC.
type Time struct{ slot[int] }

// Value returns the raw HHMMSSCC number.
func (t *Time) Value() int       { return t.get() }
func (t *Time) Hour() int        { return t.get() / 1000000 }
func (t *Time) Minute() int      { return (t.get() / 10000) % 100 }
func (t *Time) Second() int      { return (t.get() / 100) % 100 }
func (t *Time) Centisecond() int { return t.get() % 100 }

func (t *Time) set(term string) {
	v, ok := parseDecimal(term)
	if !ok || v < 0 {
		t.stage(0, false)
		return
	}
	t.stage(int(100*v), true)
}

// Speed is ground speed over ground, received in knots.
type Speed struct{ Decimal }

func (s *Speed) Knots() float64 { return toFixed(s.Value(), 2) }
func (s *Speed) MPH() float64   { return toFixed(mphPerKnot*s.Value(), 2) }
func (s *Speed) MPS() float64   { return toFixed(mpsPerKnot*s.Value(), 2) }
func (s *Speed) KMPH() float64  { return toFixed(kmphPerKnot*s.Value(), 2) }

// Course is course over ground in degrees.
type Course struct{ Decimal }

func (c *Course) Degrees() float64 { return toFixed(c.Value(), 2) }

// Altitude is altitude above mean sea level, received in meters.
type Altitude struct{ Decimal }

func (a *Altitude) Meters() float64     { return toFixed(a.Value(), 2) }
func (a *Altitude) Miles() float64      { return toFixed(milesPerMeter*a.Value(), 2) }
func (a *Altitude) Kilometers() float64 { return toFixed(kmPerMeter*a.Value(), 2) }
func (a *Altitude) Feet() float64       { return toFixed(feetPerMeter*a.Value(), 2) }

// HDOP is the horizontal dilution of precision.
type HDOP struct{ Decimal }
