package gps

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"gpsfeed/internal/nmea"
)

// serveOnce accepts one connection, hands it to fn and keeps it open until
// the test ends.
func serveOnce(t *testing.T, fn func(c net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		_ = ln.Close()
	})
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		fn(c)
		<-done
	}()
	return ln.Addr().String()
}

func TestStart_TCPSource(t *testing.T) {
	addr := serveOnce(t, func(c net.Conn) {
		_, _ = io.WriteString(c, nmea.Sentence(rmc)+nmea.Sentence(gga))
	})

	s := New(Config{Enable: true, Source: "tcp", Addr: addr}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	waitFor(t, func() bool { return s.Stats().PassedChecksum == 2 })

	// Close must interrupt the blocked read on the idle connection.
	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatalf("Close() did not return")
	}

	snap := s.Snapshot()
	if !snap.Valid || snap.Source != "tcp" || snap.Addr != addr {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestStart_GPSDSendsWatchAndDecodesNMEA(t *testing.T) {
	watch := make(chan string, 1)
	addr := serveOnce(t, func(c net.Conn) {
		_, _ = io.WriteString(c, `{"class":"VERSION","release":"3.25"}`+"\n")
		line, err := bufio.NewReader(c).ReadString('\n')
		if err != nil {
			return
		}
		watch <- line
		_, _ = io.WriteString(c, `{"class":"DEVICES","devices":[]}`+"\n")
		_, _ = io.WriteString(c, nmea.Sentence(rmc))
	})

	s := New(Config{Enable: true, Source: "gpsd", Addr: addr}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Close()

	select {
	case got := <-watch:
		if got != gpsdWatchCommand {
			t.Fatalf("watch=%q want %q", got, gpsdWatchCommand)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("gpsd never received WATCH")
	}
	waitFor(t, func() bool { return s.Snapshot().Valid })
}

func TestStart_NetworkSourceRetriesDial(t *testing.T) {
	s := New(Config{Enable: true, Source: "tcp", Addr: "127.0.0.1:9"}, nil)
	dials := make(chan struct{}, 8)
	s.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		dials <- struct{}{}
		return nil, &net.OpError{Op: "dial", Net: "tcp", Err: io.ErrUnexpectedEOF}
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-dials:
		case <-time.After(3 * time.Second):
			t.Fatalf("dial attempt %d not made", i+1)
		}
	}
	s.Close()
	if s.Snapshot().LastError == "" {
		t.Fatalf("expected last_error after failed dials")
	}
}

func TestNextBackoff(t *testing.T) {
	d := minBackoff
	for i := 0; i < 10; i++ {
		d = nextBackoff(d)
	}
	if d != maxBackoff {
		t.Fatalf("backoff=%s want %s", d, maxBackoff)
	}
	if got := nextBackoff(minBackoff); got != 2*minBackoff {
		t.Fatalf("backoff=%s want %s", got, 2*minBackoff)
	}
}
