package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"gpsfeed/internal/nmea"
)

// Config controls the GPS reader. All fields are optional unless noted.
type Config struct {
	Enable bool

	// Source selects how NMEA is ingested: "serial", "gpsd" or "tcp".
	// When empty, defaults to "serial".
	Source string

	// Device may be empty to auto-detect.
	Device string
	Baud   int
	// SerialDriver is "termios" (linux ioctl) or "portable".
	SerialDriver string

	// Addr is host:port for the gpsd and tcp sources.
	Addr string

	// StaleAfter marks a fix stale once it is older than this.
	StaleAfter time.Duration

	Custom  []CustomField
	SkyView bool
}

// CustomField names a term of an arbitrary sentence to expose in Snapshot.Custom.
type CustomField struct {
	Name     string
	Sentence string
	Term     int
	Numeric  bool
}

// LineSink receives every line read from the source, without its terminator.
type LineSink interface {
	WriteLine(now time.Time, line string) error
}

const (
	minBackoff = 250 * time.Millisecond
	maxBackoff = 10 * time.Second

	// NMEA caps sentences at 82 bytes; anything much longer is noise.
	maxLineLen = 256
)

type namedCustom struct {
	name string
	c    *nmea.Custom
}

type Service struct {
	cfg  Config
	log  *zap.SugaredLogger
	clk  clock.Clock
	base Snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Snapshot

	mu      sync.Mutex
	lastErr string
	sink    LineSink

	// Everything below is owned by whoever holds feedMu.
	feedMu    sync.Mutex
	dec       *nmea.Decoder
	customs   []namedCustom
	sky       *skyView
	line      []byte
	lineDrop  bool
	published nmea.Stats
	lastFixAt time.Time

	openSerial func(driver, device string, baud int) (io.ReadCloser, error)
	dial       func(ctx context.Context, addr string) (net.Conn, error)
	detect     func() string
}

func New(cfg Config, logger *zap.SugaredLogger) *Service {
	return newWithClock(cfg, logger, clock.New())
}

func newWithClock(cfg Config, logger *zap.SugaredLogger, clk clock.Clock) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cfg.Source = normalizeSource(cfg.Source)
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * time.Second
	}
	if cfg.Source == "gpsd" && strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = gpsdDefaultAddr
	}

	s := &Service{
		cfg:        cfg,
		log:        logger,
		clk:        clk,
		dec:        nmea.NewWithClock(clk),
		openSerial: openSerialPort,
		dial:       dialTCP,
		detect:     autoDetectDevice,
	}
	for _, f := range cfg.Custom {
		s.customs = append(s.customs, namedCustom{name: f.Name, c: s.dec.Register(f.Sentence, f.Term, f.Numeric)})
	}
	if cfg.SkyView {
		s.sky = newSkyView(s.dec)
	}

	s.base = Snapshot{Enabled: cfg.Enable, Source: cfg.Source}
	switch cfg.Source {
	case "serial", "replay":
		s.base.Device = cfg.Device
		s.base.Baud = cfg.Baud
	default:
		s.base.Addr = strings.TrimSpace(cfg.Addr)
	}
	s.last.Store(s.base)
	return s
}

func normalizeSource(src string) string {
	src = strings.ToLower(strings.TrimSpace(src))
	if src == "" || src == "nmea" {
		return "serial"
	}
	return src
}

// SetRecorder installs a sink for raw lines. Call it before Start or Consume.
func (s *Service) SetRecorder(sink LineSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	switch s.cfg.Source {
	case "serial":
		return s.startSerialLocked(ctx)
	case "gpsd":
		return s.startNetLocked(ctx, "gpsd", s.cfg.Addr, gpsdWatch)
	case "tcp":
		addr := strings.TrimSpace(s.cfg.Addr)
		if addr == "" {
			return fmt.Errorf("gps tcp source requires addr")
		}
		return s.startNetLocked(ctx, "tcp", addr, nil)
	default:
		return fmt.Errorf("unknown gps source %q", s.cfg.Source)
	}
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	// Cancelling closes the active stream, which unblocks the reader.
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Snapshot returns the latest published state with the fix age brought up to date.
func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	v := s.last.Load()
	if v == nil {
		return Snapshot{}
	}
	snap := v.(Snapshot)
	if !snap.fixAt.IsZero() {
		age := s.clk.Since(snap.fixAt)
		snap.FixAgeSec = age.Seconds()
		snap.FixStale = age > s.cfg.StaleAfter
	}
	return snap
}

// Stats returns the decoder counters as of the last published snapshot.
func (s *Service) Stats() nmea.Stats {
	return s.Snapshot().Stats
}

// Consume feeds r into the decoder until r fails or ctx is done. It returns
// the read error, io.EOF included. Calls are serialized.
func (s *Service) Consume(ctx context.Context, r io.Reader) error {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()

	br := bufio.NewReaderSize(r, 512)
	for {
		c, err := br.ReadByte()
		if err != nil {
			s.flushStats()
			return err
		}
		s.feedByte(c, sink)
		if c == '\n' {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

func (s *Service) feedByte(c byte, sink LineSink) {
	if sink != nil {
		s.collectLine(c, sink)
	}
	if s.dec.Feed(c) {
		if s.sky != nil {
			s.sky.update()
		}
		s.publish()
		return
	}
	if c == '\n' {
		s.flushStats()
	}
}

func (s *Service) collectLine(c byte, sink LineSink) {
	if c != '\n' {
		if len(s.line) >= maxLineLen {
			s.lineDrop = true
			return
		}
		s.line = append(s.line, c)
		return
	}
	line := strings.TrimSpace(string(s.line))
	drop := s.lineDrop
	s.line = s.line[:0]
	s.lineDrop = false
	if drop || !strings.HasPrefix(line, "$") {
		return
	}
	if err := sink.WriteLine(s.clk.Now(), line); err != nil {
		s.setError(fmt.Sprintf("gps record failed: %v", err))
	}
}

// flushStats republishes when counters moved without a committed sentence,
// e.g. after a checksum failure.
func (s *Service) flushStats() {
	if s.dec.Stats() != s.published {
		s.publish()
	}
}

func (s *Service) publish() {
	snap := s.buildSnapshot()
	s.published = snap.Stats

	s.mu.Lock()
	snap.LastError = s.lastErr
	s.last.Store(snap)
	s.mu.Unlock()
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrorLocked(msg)
}

func (s *Service) setErrorLocked(msg string) {
	if msg != s.lastErr {
		s.log.Warn(msg)
	}
	s.lastErr = msg
	cur := s.last.Load().(Snapshot)
	cur.LastError = msg
	// Do not force Valid=false here; transient I/O issues shouldn't flip validity.
	s.last.Store(cur)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
