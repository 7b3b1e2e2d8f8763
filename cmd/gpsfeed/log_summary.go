package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"gpsfeed/internal/nmea"
	"gpsfeed/internal/replay"
)

type logSummary struct {
	Segments       int
	Sentences      int
	Bytes          uint64
	PassedChecksum uint64
	FailedChecksum uint64
	WithFix        uint64
	MaxDuration    time.Duration
	NameCounts     map[string]int
}

func summarizeNMEALog(records []replay.Record) logSummary {
	s := logSummary{NameCounts: map[string]int{}}
	if len(records) == 0 {
		return s
	}

	dec := nmea.New()
	origin := time.Duration(0)
	segments := 0

	for _, r := range records {
		if r.IsStart() {
			segments++
			origin = r.At
			continue
		}

		s.Sentences++
		if at := r.At - origin; at > s.MaxDuration {
			s.MaxDuration = at
		}
		if name, ok := nmea.SentenceName(r.Line); ok {
			s.NameCounts[name]++
		}
		for i := 0; i < len(r.Line); i++ {
			dec.Feed(r.Line[i])
		}
		dec.Feed('\r')
		dec.Feed('\n')
	}
	if segments == 0 && s.Sentences > 0 {
		segments = 1
	}
	s.Segments = segments

	st := dec.Stats()
	s.Bytes = st.CharsProcessed
	s.PassedChecksum = st.PassedChecksum
	s.FailedChecksum = st.FailedChecksum
	s.WithFix = st.SentencesWithFix
	return s
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	recs, err := replay.NewReader(f).ReadAll()
	if err != nil {
		return err
	}

	s := summarizeNMEALog(recs)

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "segments: %d\n", s.Segments)
	fmt.Fprintf(w, "sentences: %s\n", humanize.Comma(int64(s.Sentences)))
	fmt.Fprintf(w, "nmea_bytes: %s\n", humanize.Bytes(s.Bytes))
	fmt.Fprintf(w, "passed_checksum: %s\n", humanize.Comma(int64(s.PassedChecksum)))
	fmt.Fprintf(w, "failed_checksum: %s\n", humanize.Comma(int64(s.FailedChecksum)))
	fmt.Fprintf(w, "sentences_with_fix: %s\n", humanize.Comma(int64(s.WithFix)))
	fmt.Fprintf(w, "max_duration: %s\n", s.MaxDuration)

	names := make([]string, 0, len(s.NameCounts))
	for k := range s.NameCounts {
		names = append(names, k)
	}
	sort.Strings(names)
	fmt.Fprintf(w, "sentence_counts:\n")
	for _, k := range names {
		fmt.Fprintf(w, "  %s: %s\n", k, humanize.Comma(int64(s.NameCounts[k])))
	}
	return nil
}
