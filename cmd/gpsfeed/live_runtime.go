package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gpsfeed/internal/config"
	"gpsfeed/internal/gps"
	"gpsfeed/internal/mqttpub"
	"gpsfeed/internal/replay"
	"gpsfeed/internal/udp"
	"gpsfeed/internal/web"
)

// errReplayDone ends a run whose replay log played out.
var errReplayDone = errors.New("replay finished")

type output struct {
	name    string
	publish func(gps.Snapshot) error
	close   func() error
}

type liveRuntime struct {
	cfg config.Config
	log *zap.SugaredLogger
	clk clock.Clock

	status   *web.Status
	tail     *web.SentenceTail
	gpsSvc   *gps.Service
	recorder *replay.Writer
	records  []replay.Record
	outputs  []output
	mqtt     *mqttpub.Publisher
}

func gpsConfig(c config.GPSConfig) gps.Config {
	out := gps.Config{
		Enable:       c.Enable,
		Source:       c.Source,
		Device:       c.Device,
		Baud:         c.Baud,
		SerialDriver: c.SerialDriver,
		Addr:         c.Addr,
		StaleAfter:   c.StaleAfter,
		SkyView:      c.SkyView,
	}
	for _, f := range c.Custom {
		out.Custom = append(out.Custom, gps.CustomField{Name: f.Name, Sentence: f.Sentence, Term: f.Term, Numeric: f.Numeric})
	}
	return out
}

func newLiveRuntime(cfg config.Config, logger *zap.SugaredLogger) (*liveRuntime, error) {
	return newLiveRuntimeWithClock(cfg, logger, clock.New())
}

func newLiveRuntimeWithClock(cfg config.Config, logger *zap.SugaredLogger, clk clock.Clock) (rt *liveRuntime, err error) {
	c := cfg
	if err := config.DefaultAndValidate(&c); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	rt = &liveRuntime{
		cfg:    c,
		log:    logger,
		clk:    clk,
		status: web.NewStatus(),
	}
	// Anything opened before a failure is released again.
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	gc := gpsConfig(c.GPS)
	source := gc.Source
	if c.Replay.Enable {
		f, err := os.Open(c.Replay.Path)
		if err != nil {
			return rt, fmt.Errorf("open replay log: %w", err)
		}
		rt.records, err = replay.NewReader(f).ReadAll()
		_ = f.Close()
		if err != nil {
			return rt, fmt.Errorf("read replay log %s: %w", c.Replay.Path, err)
		}
		gc.Enable = true
		gc.Source = "replay"
		gc.Device = c.Replay.Path
		source = "replay"
	}
	rt.gpsSvc = gps.New(gc, logger.Named("gps"))

	if c.Web.Enable {
		rt.tail = web.NewSentenceTail(500)
	}
	if c.Record.Enable {
		w, err := replay.CreateWriter(c.Record.Path)
		if err != nil {
			return rt, fmt.Errorf("create record log: %w", err)
		}
		rt.recorder = w
		logger.Infof("recording NMEA to %s", c.Record.Path)
	}
	var sink gps.LineSink
	switch {
	case rt.recorder != nil && rt.tail != nil:
		sink = gps.MultiSink(rt.recorder, rt.tail)
	case rt.recorder != nil:
		sink = rt.recorder
	case rt.tail != nil:
		sink = rt.tail
	}
	if sink != nil {
		rt.gpsSvc.SetRecorder(sink)
	}

	var names []string
	if c.Output.UDP.Enable {
		b, err := udp.NewBroadcaster(c.Output.UDP.Dest)
		if err != nil {
			return rt, fmt.Errorf("udp broadcaster init failed: %w", err)
		}
		rt.outputs = append(rt.outputs, output{
			name:    "udp:" + b.Dest(),
			publish: func(s gps.Snapshot) error { return b.SendJSON(s) },
			close:   b.Close,
		})
		names = append(names, "udp:"+b.Dest())
	}
	if c.Output.MQTT.Enable {
		m := c.Output.MQTT
		rt.mqtt = mqttpub.New(mqttpub.Config{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Topic:    m.Topic,
			QoS:      byte(m.QoS),
			Retained: m.Retained,
			Username: m.Username,
			Password: m.Password,
		}, logger.Named("mqtt"))
		rt.outputs = append(rt.outputs, output{
			name:    "mqtt:" + m.Broker + "/" + m.Topic,
			publish: rt.mqtt.Publish,
			close:   rt.mqtt.Close,
		})
		names = append(names, "mqtt:"+m.Broker+"/"+m.Topic)
	}
	rt.status.SetStatic(source, names, c.Output.Interval.String())
	return rt, nil
}

// Run blocks until ctx is done, a component fails, or a non-looping replay
// ends. Everything is closed before it returns.
func (rt *liveRuntime) Run(ctx context.Context) error {
	defer func() {
		if err := rt.Close(); err != nil {
			rt.log.Warnf("close: %v", err)
		}
		rt.logTotals()
	}()

	if rt.mqtt != nil {
		if err := rt.mqtt.Connect(); err != nil {
			// Auto-reconnect only covers brokers that were reachable once.
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if rt.cfg.Replay.Enable {
		rt.log.Infof("replaying %s records=%d speed=%g loop=%v", rt.cfg.Replay.Path, len(rt.records), rt.cfg.Replay.Speed, rt.cfg.Replay.Loop)
		g.Go(func() error { return rt.runReplay(gctx) })
	} else if err := rt.gpsSvc.Start(gctx); err != nil {
		return fmt.Errorf("gps start: %w", err)
	}

	g.Go(func() error { return rt.runOutputs(gctx) })

	if rt.cfg.Web.Enable {
		h := web.Handler(rt.status, rt.gpsSvc, web.Options{
			WSInterval: rt.cfg.Web.WSInterval,
			Tail:       rt.tail,
			Logger:     rt.log.Named("web"),
		})
		rt.log.Infof("web listening on %s", rt.cfg.Web.Listen)
		g.Go(func() error {
			err := web.Serve(gctx, rt.cfg.Web.Listen, h)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	err := g.Wait()
	switch {
	case errors.Is(err, errReplayDone):
		rt.log.Infof("replay finished")
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return nil
	}
	return err
}

// runOutputs publishes a snapshot to every output each interval and keeps
// the recorder flushed.
func (rt *liveRuntime) runOutputs(ctx context.Context) error {
	t := rt.clk.Ticker(rt.cfg.Output.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			rt.tick()
			return ctx.Err()
		case <-t.C:
			rt.tick()
		}
	}
}

func (rt *liveRuntime) tick() {
	if rt.recorder != nil {
		if err := rt.recorder.Flush(); err != nil {
			rt.log.Warnf("record flush failed: %v", err)
		}
	}
	if len(rt.outputs) == 0 {
		rt.status.MarkTick(rt.clk.Now().UTC(), 0, 0)
		return
	}

	snap := rt.gpsSvc.Snapshot()
	sent, failed := 0, 0
	for _, o := range rt.outputs {
		if err := o.publish(snap); err != nil {
			failed++
			rt.log.Debugf("%s send failed: %v", o.name, err)
			continue
		}
		sent++
	}
	rt.status.MarkTick(rt.clk.Now().UTC(), sent, failed)
}

type ctxSleeper struct {
	ctx context.Context
	clk clock.Clock
}

func (s ctxSleeper) Sleep(d time.Duration) {
	t := s.clk.Timer(d)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
	case <-t.C:
	}
}

// runReplay plays the log through a pipe into the service, so replayed
// bytes take the same path as a live receiver.
func (rt *liveRuntime) runReplay(ctx context.Context) error {
	pr, pw := io.Pipe()
	consumed := make(chan error, 1)
	go func() {
		err := rt.gpsSvc.Consume(ctx, pr)
		// Unblock the player if the consumer stopped first.
		_ = pr.Close()
		consumed <- err
	}()

	err := replay.Play(rt.records, rt.cfg.Replay.Speed, rt.cfg.Replay.Loop, ctxSleeper{ctx: ctx, clk: rt.clk}, func(line string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := io.WriteString(pw, line+"\r\n")
		return err
	})
	_ = pw.Close()
	cerr := <-consumed

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if cerr != nil && !errors.Is(cerr, io.EOF) {
		return fmt.Errorf("replay consume: %w", cerr)
	}
	return errReplayDone
}

func (rt *liveRuntime) Close() error {
	var err error
	if rt.gpsSvc != nil {
		rt.gpsSvc.Close()
	}
	for _, o := range rt.outputs {
		err = multierr.Append(err, o.close())
	}
	rt.outputs = nil
	if rt.recorder != nil {
		err = multierr.Append(err, rt.recorder.Close())
	}
	return err
}

func (rt *liveRuntime) logTotals() {
	st := rt.gpsSvc.Stats()
	rt.log.Infof("gpsfeed stopped nmea_bytes=%s passed=%s failed=%s with_fix=%s snapshots_sent=%s",
		humanize.Bytes(st.CharsProcessed),
		humanize.Comma(int64(st.PassedChecksum)),
		humanize.Comma(int64(st.FailedChecksum)),
		humanize.Comma(int64(st.SentencesWithFix)),
		humanize.Comma(int64(rt.status.Sent())),
	)
}
