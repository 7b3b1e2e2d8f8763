package web

import (
	"sync/atomic"
	"time"

	"gpsfeed/internal/gps"
)

// Status holds the runtime counters of the output loop. It is updated by
// the runtime and read by the HTTP handlers.
type Status struct {
	startUnixNano int64
	sent          uint64
	sendErrors    uint64
	lastTickNano  int64
	source        atomic.Value // string
	outputs       atomic.Value // []string
	interval      atomic.Value // string
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.source.Store("")
	s.outputs.Store([]string(nil))
	s.interval.Store("")
	return s
}

func (s *Status) SetStatic(source string, outputs []string, interval string) {
	if source != "" {
		s.source.Store(source)
	}
	if outputs != nil {
		s.outputs.Store(append([]string(nil), outputs...))
	}
	if interval != "" {
		s.interval.Store(interval)
	}
}

// MarkTick records one output tick: how many snapshots went out and how
// many sends failed.
func (s *Status) MarkTick(nowUTC time.Time, sent, failed int) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	atomic.StoreInt64(&s.lastTickNano, nowUTC.UnixNano())
	if sent > 0 {
		atomic.AddUint64(&s.sent, uint64(sent))
	}
	if failed > 0 {
		atomic.AddUint64(&s.sendErrors, uint64(failed))
	}
}

func (s *Status) Sent() uint64       { return atomic.LoadUint64(&s.sent) }
func (s *Status) SendErrors() uint64 { return atomic.LoadUint64(&s.sendErrors) }

type StatusSnapshot struct {
	Service     string       `json:"service"`
	NowUTC      string       `json:"now_utc"`
	UptimeSec   int64        `json:"uptime_sec"`
	Source      string       `json:"source"`
	Outputs     []string     `json:"outputs"`
	Interval    string       `json:"interval"`
	SentTotal   uint64       `json:"snapshots_sent_total"`
	SendErrors  uint64       `json:"send_errors_total"`
	LastTickUTC string       `json:"last_tick_utc,omitempty"`
	GPS         gps.Snapshot `json:"gps"`
}

// Snapshot returns the status counters. GPS is left for the caller to fill.
func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	snap := StatusSnapshot{
		Service:    "gpsfeed",
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(nowUTC.Sub(start).Seconds()),
		Source:     s.source.Load().(string),
		Outputs:    s.outputs.Load().([]string),
		Interval:   s.interval.Load().(string),
		SentTotal:  s.Sent(),
		SendErrors: s.SendErrors(),
	}
	if lastTick := atomic.LoadInt64(&s.lastTickNano); lastTick != 0 {
		snap.LastTickUTC = time.Unix(0, lastTick).UTC().Format(time.RFC3339Nano)
	}
	return snap
}
