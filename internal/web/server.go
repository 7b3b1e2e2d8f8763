// Package web serves the gpsfeed status API: a JSON status endpoint, a
// websocket snapshot stream, the recent sentence tail and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gpsfeed/internal/gps"
)

// SnapshotSource is the part of gps.Service the handlers read.
type SnapshotSource interface {
	Snapshot() gps.Snapshot
}

type Options struct {
	// WSInterval is the push period of /ws. Defaults to 1s.
	WSInterval time.Duration
	// Tail backs /api/nmea when set.
	Tail   *SentenceTail
	Logger *zap.SugaredLogger
}

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	// The API is read-only and meant for the local network.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type server struct {
	status *Status
	src    SnapshotSource
	opts   Options
	log    *zap.SugaredLogger
}

func Handler(status *Status, src SnapshotSource, opts Options) http.Handler {
	if status == nil {
		status = NewStatus()
	}
	if opts.WSInterval <= 0 {
		opts.WSInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	s := &server{status: status, src: src, opts: opts, log: opts.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/ws", s.handleWS)
	if opts.Tail != nil {
		mux.Handle("/api/nmea", opts.Tail.Handler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(newRegistry(src, status), promhttp.HandlerOpts{}))
	mux.HandleFunc("/", s.handleRoot)
	return mux
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *server) statusSnapshot() StatusSnapshot {
	snap := s.status.Snapshot(time.Now().UTC())
	if s.src != nil {
		snap.GPS = s.src.Snapshot()
	}
	return snap
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	b, err := json.MarshalIndent(s.statusSnapshot(), "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// handleWS pushes the GPS snapshot right away and then every WSInterval
// until the client goes away or the server shuts down.
func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.log.Debugf("websocket upgrade failed remote=%s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	// Clients never send anything useful; reading only detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(s.opts.WSInterval)
	defer t.Stop()
	for {
		var snap gps.Snapshot
		if s.src != nil {
			snap = s.src.Snapshot()
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(snap); err != nil {
			s.log.Debugf("websocket write failed remote=%s: %v", r.RemoteAddr, err)
			return
		}
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		case <-t.C:
		}
	}
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	snap := s.statusSnapshot()
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>gpsfeed</title></head><body>")
	_, _ = fmt.Fprintf(w, "<h1>gpsfeed</h1>")
	_, _ = fmt.Fprintf(w, "<p><a href=\"/api/status\">/api/status</a> <a href=\"/api/nmea?format=text\">/api/nmea</a> <a href=\"/metrics\">/metrics</a></p>")
	_, _ = fmt.Fprintf(w, "<pre>source=%s\nvalid=%v\nlat=%.6f lon=%.6f\nsnapshots_sent_total=%d\nlast_tick_utc=%s</pre>",
		snap.Source, snap.GPS.Valid, snap.GPS.LatDeg, snap.GPS.LonDeg, snap.SentTotal, snap.LastTickUTC,
	)
	_, _ = fmt.Fprintf(w, "</body></html>")
}

// Serve runs h on listenAddr until ctx is done. Request contexts derive from
// ctx so websocket streams end with the server.
func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
