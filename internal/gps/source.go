package gps

import (
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"time"
)

type opener func(ctx context.Context) (io.ReadCloser, error)

func (s *Service) startSerialLocked(ctx context.Context) error {
	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = s.detect()
		if device == "" {
			s.setErrorLocked("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			return fmt.Errorf("gps auto-detect failed")
		}
	}
	baud := s.cfg.Baud
	driver := s.cfg.SerialDriver
	if driver == "" {
		driver = "termios"
	}

	f, err := s.openSerial(driver, device, baud)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gps open failed device=%s baud=%d: %v", device, baud, err))
		return err
	}

	s.base.Device = device
	s.base.Baud = baud
	s.last.Store(s.base)

	s.log.Infof("gps enabled device=%s baud=%d driver=%s", device, baud, driver)
	open := func(context.Context) (io.ReadCloser, error) { return s.openSerial(driver, device, baud) }
	s.runLocked(ctx, "serial "+device, open, f)
	return nil
}

func (s *Service) startNetLocked(ctx context.Context, kind, addr string, handshake func(net.Conn) error) error {
	open := func(ctx context.Context) (io.ReadCloser, error) {
		conn, err := s.dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		if handshake != nil {
			if err := handshake(conn); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("%s handshake failed: %w", kind, err)
			}
		}
		return conn, nil
	}
	s.log.Infof("gps enabled source=%s addr=%s", kind, addr)
	s.runLocked(ctx, kind+" "+addr, open, nil)
	return nil
}

// runLocked starts the reader goroutine. first may be an already open
// stream; later streams come from open with exponential backoff.
func (s *Service) runLocked(ctx context.Context, label string, open opener, first io.ReadCloser) {
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		backoff := minBackoff
		rc := first
		for {
			if rc == nil {
				var err error
				rc, err = open(childCtx)
				if err != nil {
					if childCtx.Err() != nil {
						return
					}
					s.setError(fmt.Sprintf("gps %s open failed: %v", label, err))
					if !sleepCtx(childCtx, backoff) {
						return
					}
					backoff = nextBackoff(backoff)
					continue
				}
				s.log.Infof("gps connected %s", label)
			}
			backoff = minBackoff

			// Cancellation closes the stream to unblock a pending read.
			cur := rc
			stop := context.AfterFunc(childCtx, func() { _ = cur.Close() })
			err := s.Consume(childCtx, cur)
			if stop() {
				_ = cur.Close()
			}
			rc = nil

			if childCtx.Err() != nil {
				return
			}
			s.setError(fmt.Sprintf("gps %s read stopped: %v", label, err))
			if !sleepCtx(childCtx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
		}
	}()
}

func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

func autoDetectDevice() string {
	for _, pattern := range []string{"/dev/ttyACM*", "/dev/ttyUSB*"} {
		// Glob returns matches in lexical order.
		if m, _ := filepath.Glob(pattern); len(m) > 0 {
			return m[0]
		}
	}
	return ""
}
