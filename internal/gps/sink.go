package gps

import (
	"time"

	"go.uber.org/multierr"
)

type multiSink []LineSink

// MultiSink fans each line out to every non-nil sink. A failing sink does
// not stop the others; their errors are combined.
func MultiSink(sinks ...LineSink) LineSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

func (m multiSink) WriteLine(now time.Time, line string) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.WriteLine(now, line))
	}
	return err
}
