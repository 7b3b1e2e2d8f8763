package nmea

import (
	"math"

	"github.com/benbjohnson/clock"
)

// MaxTermLength is how many bytes of a single term are kept. Longer terms are
// truncated but still count toward the checksum.
const MaxTermLength = 14

type sentenceType int

const (
	sentenceOther sentenceType = iota
	sentenceRMC
	sentenceGGA
)

func sentenceTypeOf(name string) sentenceType {
	switch name {
	case "GPRMC", "GNRMC":
		return sentenceRMC
	case "GPGGA", "GNGGA":
		return sentenceGGA
	default:
		return sentenceOther
	}
}

// Stats are running decoder counters.
type Stats struct {
	CharsProcessed   uint64 `json:"chars_processed"`
	SentencesWithFix uint64 `json:"sentences_with_fix"`
	FailedChecksum   uint64 `json:"failed_checksum"`
	PassedChecksum   uint64 `json:"passed_checksum"`
}

// Decoder is the byte-driven NMEA state machine. The exported fields hold the
// latest committed values.
type Decoder struct {
	Location   Location
	Date       Date
	Time       Time
	Speed      Speed
	Course     Course
	Altitude   Altitude
	Satellites Integer
	HDOP       HDOP

	clk clock.Clock

	term       [MaxTermLength]byte
	termLen    int
	termNumber int
	parity     byte

	// idle is set until the first '$' and again once a checksum term closes,
	// so stray bytes and trailing CR/LF are never dispatched.
	idle         bool
	checksumTerm bool
	kind         sentenceType
	name         string
	hasFix       bool

	customs   []*Custom
	candidate int

	stats Stats
}

// New returns a Decoder timing field ages with the wall clock.
func New() *Decoder {
	return NewWithClock(clock.New())
}

// NewWithClock returns a Decoder that stamps commits with clk.
func NewWithClock(clk clock.Clock) *Decoder {
	if clk == nil {
		clk = clock.New()
	}
	d := &Decoder{clk: clk, idle: true, candidate: -1}
	for _, f := range []interface{ setClock(clock.Clock) }{
		&d.Location, &d.Date, &d.Time, &d.Speed, &d.Course,
		&d.Altitude, &d.Satellites, &d.HDOP,
	} {
		f.setClock(clk)
	}
	return d
}

// Stats returns a copy of the running counters.
func (d *Decoder) Stats() Stats { return d.stats }

// FeedString feeds s byte by byte and stops right after the first sentence
// that completes with a valid checksum. Bytes after that point are not consumed.
func (d *Decoder) FeedString(s string) bool {
	for i := 0; i < len(s); i++ {
		if d.Feed(s[i]) {
			return true
		}
	}
	return false
}

// Feed processes one byte and reports whether it completed a sentence with a
// valid checksum.
func (d *Decoder) Feed(c byte) bool {
	d.stats.CharsProcessed++

	switch c {
	case ',', '\r', '\n', '*':
		if c == ',' {
			d.parity ^= c
		}
		complete := false
		if !d.idle {
			complete = d.endOfTerm()
		}
		d.termNumber++
		d.termLen = 0
		d.checksumTerm = c == '*'
		return complete

	case '$':
		d.termNumber = 0
		d.termLen = 0
		d.parity = 0
		d.kind = sentenceOther
		d.name = ""
		d.checksumTerm = false
		d.hasFix = false
		d.idle = false
		d.candidate = -1
		return false

	default:
		if d.termLen < len(d.term) {
			d.term[d.termLen] = c
			d.termLen++
		}
		if !d.checksumTerm {
			d.parity ^= c
		}
		return false
	}
}

func (d *Decoder) endOfTerm() bool {
	term := string(d.term[:d.termLen])

	if d.checksumTerm {
		d.idle = true
		return d.validateAndCommit(term)
	}

	if d.termNumber == 0 {
		d.setSentence(term)
		return false
	}

	if d.kind != sentenceOther {
		d.setStandard(term)
	}
	d.customRun(d.termNumber, func(c *Custom) {
		if c.term == d.termNumber {
			c.set(term)
		}
	})
	return false
}

func (d *Decoder) setSentence(name string) {
	d.name = name
	d.kind = sentenceTypeOf(name)
	d.candidate = d.findCandidate(name)
	d.customRun(math.MaxInt, func(c *Custom) { c.pending = false })
}

func first(term string) byte {
	if term == "" {
		return 0
	}
	return term[0]
}

func (d *Decoder) setStandard(term string) {
	switch d.kind {
	case sentenceRMC:
		switch d.termNumber {
		case 1:
			d.Time.set(term)
		case 2:
			d.hasFix = first(term) == 'A'
		case 3:
			d.Location.Latitude.set(term)
		case 4:
			d.Location.Latitude.setSign(first(term) == 'S')
		case 5:
			d.Location.Longitude.set(term)
		case 6:
			d.Location.Longitude.setSign(first(term) == 'W')
		case 7:
			d.Speed.set(term)
		case 8:
			d.Course.set(term)
		case 9:
			d.Date.set(term)
		}
	case sentenceGGA:
		switch d.termNumber {
		case 1:
			d.Time.set(term)
		case 2:
			d.Location.Latitude.set(term)
		case 3:
			d.Location.Latitude.setSign(first(term) == 'S')
		case 4:
			d.Location.Longitude.set(term)
		case 5:
			d.Location.Longitude.setSign(first(term) == 'W')
		case 6:
			d.hasFix = first(term) > '0'
		case 7:
			d.Satellites.set(term)
		case 8:
			d.HDOP.set(term)
		case 9:
			d.Altitude.set(term)
		}
	}
}

func (d *Decoder) validateAndCommit(term string) bool {
	want, ok := parseChecksum(term)
	if !ok || want != d.parity {
		d.stats.FailedChecksum++
		return false
	}
	d.stats.PassedChecksum++
	if d.hasFix {
		d.stats.SentencesWithFix++
	}

	switch d.kind {
	case sentenceGGA:
		d.Time.commit()
		if d.hasFix {
			d.Location.commit()
			d.Altitude.commit()
		}
		d.Satellites.commit()
		d.HDOP.commit()
	case sentenceRMC:
		d.Date.commit()
		d.Time.commit()
		if d.hasFix {
			d.Location.commit()
			d.Speed.commit()
			d.Course.commit()
		}
	}

	d.customRun(math.MaxInt, func(c *Custom) { c.commit() })
	return true
}
