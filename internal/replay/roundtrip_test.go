package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gpsfeed/internal/nmea"
)

func TestRecordReplay_RoundTripDecodesSameValues(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nmea-record.log")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}

	// Same timestamp for every line so replay has zero waits.
	now := time.Now()
	linesIn := []string{
		nmea.Sentence("GPRMC,045103.000,A,3014.1984,N,09749.2872,W,0.67,161.46,030913,,,A"),
		nmea.Sentence("GPGGA,045104.321,3014.1985,N,09749.2873,W,1,09,1.2,211.6,M,-22.5,M,,0000"),
	}
	for _, l := range linesIn {
		if err := w.WriteLine(now, l); err != nil {
			_ = w.Close()
			t.Fatalf("WriteLine() error: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rc, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer rc.Close()

	recs, err := NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}

	live := nmea.New()
	for _, l := range linesIn {
		live.FeedString(l)
	}

	replayed := nmea.New()
	fs := &fakeSleeper{}
	err = Play(recs, 1.0, false, fs, func(line string) error {
		if !replayed.FeedString(line + "\r\n") {
			t.Fatalf("replayed line did not decode: %q", line)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if len(fs.slept) != 0 {
		t.Fatalf("expected no sleeps, got %v", fs.slept)
	}

	if live.Location.Lat() != replayed.Location.Lat() || live.Location.Lng() != replayed.Location.Lng() {
		t.Fatalf("location mismatch live=%v,%v replay=%v,%v",
			live.Location.Lat(), live.Location.Lng(), replayed.Location.Lat(), replayed.Location.Lng())
	}
	if live.Altitude.Meters() != replayed.Altitude.Meters() || live.Time.Value() != replayed.Time.Value() {
		t.Fatalf("altitude/time mismatch")
	}
	if got := replayed.Stats().PassedChecksum; got != uint64(len(linesIn)) {
		t.Fatalf("passed=%d want %d", got, len(linesIn))
	}
	if strings.Contains(recs[1].Line, "\r") {
		t.Fatalf("recorded line kept its terminator: %q", recs[1].Line)
	}
}
