package web

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gpsfeed/internal/gps"
)

// gpsCollector exports the decoder counters and the current fix. Values are
// read from the latest snapshot at scrape time.
type gpsCollector struct {
	src    SnapshotSource
	status *Status

	chars     *prometheus.Desc
	passed    *prometheus.Desc
	failed    *prometheus.Desc
	withFix   *prometheus.Desc
	fixValid  *prometheus.Desc
	fixAge    *prometheus.Desc
	sats      *prometheus.Desc
	hdop      *prometheus.Desc
	sent      *prometheus.Desc
	sendError *prometheus.Desc
}

func newGPSCollector(src SnapshotSource, status *Status) *gpsCollector {
	d := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("gpsfeed", "", name), help, nil, nil)
	}
	return &gpsCollector{
		src:       src,
		status:    status,
		chars:     d("nmea_chars_processed_total", "Bytes fed to the NMEA decoder."),
		passed:    d("nmea_passed_checksum_total", "Sentences whose checksum matched."),
		failed:    d("nmea_failed_checksum_total", "Sentences whose checksum did not match."),
		withFix:   d("nmea_sentences_with_fix_total", "RMC/GGA sentences that reported an active fix."),
		fixValid:  d("fix_valid", "1 when the last fix is valid and not stale."),
		fixAge:    d("fix_age_seconds", "Seconds since the last fix was committed."),
		sats:      d("satellites", "Satellites used in the last GGA fix."),
		hdop:      d("hdop", "Horizontal dilution of precision of the last GGA fix."),
		sent:      d("snapshots_sent_total", "Snapshots delivered to UDP or MQTT."),
		sendError: d("send_errors_total", "Snapshot deliveries that failed."),
	}
}

func (c *gpsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.chars, c.passed, c.failed, c.withFix, c.fixValid, c.fixAge, c.sats, c.hdop, c.sent, c.sendError} {
		ch <- d
	}
}

func (c *gpsCollector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	if c.status != nil {
		counter(c.sent, c.status.Sent())
		counter(c.sendError, c.status.SendErrors())
	}
	if c.src == nil {
		return
	}
	c.collectFix(ch, c.src.Snapshot(), counter)
}

func (c *gpsCollector) collectFix(ch chan<- prometheus.Metric, snap gps.Snapshot, counter func(*prometheus.Desc, uint64)) {
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.chars, snap.Stats.CharsProcessed)
	counter(c.passed, snap.Stats.PassedChecksum)
	counter(c.failed, snap.Stats.FailedChecksum)
	counter(c.withFix, snap.Stats.SentencesWithFix)

	valid := 0.0
	if snap.Valid && !snap.FixStale {
		valid = 1
	}
	gauge(c.fixValid, valid)
	if snap.Valid {
		gauge(c.fixAge, snap.FixAgeSec)
	}
	if snap.Satellites != nil {
		gauge(c.sats, float64(*snap.Satellites))
	}
	if snap.HDOP != nil {
		gauge(c.hdop, *snap.HDOP)
	}
}

func newRegistry(src SnapshotSource, status *Status) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newGPSCollector(src, status),
		collectors.NewGoCollector(),
	)
	return reg
}
