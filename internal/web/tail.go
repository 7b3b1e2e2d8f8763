package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SentenceTail keeps the most recent raw sentences seen on the GPS stream.
// It satisfies gps.LineSink so the service can feed it alongside a recorder.
type SentenceTail struct {
	mu      sync.Mutex
	max     int
	lines   []tailLine
	dropped uint64
}

type tailLine struct {
	at   time.Time
	line string
}

func NewSentenceTail(maxLines int) *SentenceTail {
	if maxLines <= 0 {
		maxLines = 500
	}
	return &SentenceTail{max: maxLines}
}

func (t *SentenceTail) WriteLine(now time.Time, line string) error {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, tailLine{at: now.UTC(), line: line})
	if len(t.lines) > t.max {
		over := len(t.lines) - t.max
		t.lines = append(t.lines[:0:0], t.lines[over:]...)
		t.dropped += uint64(over)
	}
	return nil
}

type TailEntry struct {
	AtUTC    string `json:"at_utc"`
	Sentence string `json:"sentence"`
}

type TailResponse struct {
	NowUTC    string      `json:"now_utc"`
	Dropped   uint64      `json:"dropped"`
	Sentences []TailEntry `json:"sentences"`
}

// Snapshot returns up to n of the newest sentences, oldest first.
func (t *SentenceTail) Snapshot(n int) (entries []TailEntry, dropped uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.lines) {
		n = len(t.lines)
	}
	entries = make([]TailEntry, 0, n)
	for _, l := range t.lines[len(t.lines)-n:] {
		entries = append(entries, TailEntry{AtUTC: l.at.Format(time.RFC3339Nano), Sentence: l.line})
	}
	return entries, t.dropped
}

// Handler serves the tail as JSON, or as plain text with ?format=text.
func (t *SentenceTail) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		n := 100
		if s := strings.TrimSpace(r.URL.Query().Get("tail")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 5000 {
				http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
				return
			}
			n = v
		}

		entries, dropped := t.Snapshot(n)
		w.Header().Set("Cache-Control", "no-store")

		if strings.EqualFold(r.URL.Query().Get("format"), "text") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if dropped > 0 {
				_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
			}
			for _, e := range entries {
				_, _ = fmt.Fprintln(w, e.Sentence)
			}
			return
		}

		b, err := json.MarshalIndent(TailResponse{
			NowUTC:    time.Now().UTC().Format(time.RFC3339Nano),
			Dropped:   dropped,
			Sentences: entries,
		}, "", "  ")
		if err != nil {
			http.Error(w, "marshal failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
	})
}
