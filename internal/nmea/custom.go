package nmea

import (
	"errors"
	"sort"
)

// ErrNotNumeric is returned by Custom.Numeric for a field registered as text only.
var ErrNotNumeric = errors.New("nmea: custom field was not registered as numeric")

// Custom is a caller-registered term of an arbitrary sentence, kept as the
// raw term text.
type Custom struct {
	fieldState

	sentence string
	term     int

	staged  string
	pending bool
	value   string

	numeric *Decimal
}

// Sentence is the sentence identifier the field is bound to, e.g. "GPGSV".
func (c *Custom) Sentence() string { return c.sentence }

// Term is the comma-separated term index within the sentence (0 is the identifier).
func (c *Custom) Term() int { return c.term }

// Value returns the raw text of the last committed term.
func (c *Custom) Value() string {
	c.updated = false
	return c.value
}

// Numeric returns the decimal view of the field. It fails unless the field
// was registered with numeric set.
func (c *Custom) Numeric() (*Decimal, error) {
	if c.numeric == nil {
		return nil, ErrNotNumeric
	}
	return c.numeric, nil
}

func (c *Custom) set(term string) {
	c.staged = term
	c.pending = true
	if c.numeric != nil {
		c.numeric.set(term)
	}
}

// commit only applies when the term was seen in the sentence being
// committed, so a term index past the end of a sentence never turns valid.
func (c *Custom) commit() {
	if !c.pending {
		return
	}
	c.pending = false
	c.value = c.staged
	c.stamp(true)
	if c.numeric != nil {
		c.numeric.commit()
	}
}

// Register binds a new Custom to term index term of sentence. Entries stay
// ordered by sentence name then term index; registering the same pair twice
// yields two independent fields fed with the same text.
//
// Register must not race with Feed.
func (d *Decoder) Register(sentence string, term int, numeric bool) *Custom {
	c := &Custom{sentence: sentence, term: term}
	c.setClock(d.clk)
	if numeric {
		c.numeric = &Decimal{}
		c.numeric.setClock(d.clk)
	}

	i := sort.Search(len(d.customs), func(i int) bool {
		e := d.customs[i]
		return e.sentence > sentence || (e.sentence == sentence && e.term > term)
	})
	d.customs = append(d.customs, nil)
	copy(d.customs[i+1:], d.customs[i:])
	d.customs[i] = c

	// Indices moved; re-anchor the sentence currently streaming in.
	if !d.idle && d.termNumber > 0 {
		d.candidate = d.findCandidate(d.name)
	}
	return c
}

// findCandidate returns the index of the first entry registered for name, or -1.
func (d *Decoder) findCandidate(name string) int {
	i := sort.Search(len(d.customs), func(i int) bool {
		return d.customs[i].sentence >= name
	})
	if i < len(d.customs) && d.customs[i].sentence == name {
		return i
	}
	return -1
}

// customRun calls fn for each entry bound to the current sentence whose term
// index is at most maxTerm.
func (d *Decoder) customRun(maxTerm int, fn func(c *Custom)) {
	if d.candidate < 0 {
		return
	}
	for i := d.candidate; i < len(d.customs); i++ {
		c := d.customs[i]
		if c.sentence != d.name || c.term > maxTerm {
			return
		}
		fn(c)
	}
}
