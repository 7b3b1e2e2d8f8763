package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"gpsfeed/internal/gps"
)

func decodeAll(t *testing.T, input string, opts decodeOptions) []gps.Snapshot {
	t.Helper()
	var out bytes.Buffer
	if err := decodeStream(context.Background(), strings.NewReader(input), &out, opts); err != nil {
		t.Fatalf("decodeStream() error: %v", err)
	}
	var snaps []gps.Snapshot
	dec := json.NewDecoder(&out)
	for dec.More() {
		var s gps.Snapshot
		if err := dec.Decode(&s); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		snaps = append(snaps, s)
	}
	return snaps
}

func TestDecodeStream_OneSnapshotPerValidSentence(t *testing.T) {
	input := line(rmcPayload) + "\n" +
		"\n" +
		"$GPRMC,1*00\n" +
		"garbage\n" +
		line(ggaPayload) + "\r\n"

	snaps := decodeAll(t, input, decodeOptions{})
	if len(snaps) != 2 {
		t.Fatalf("snapshots=%d want 2", len(snaps))
	}
	if !snaps[0].Valid || snaps[0].Date != "2013-09-03" || snaps[0].Time != "04:51:03.00" {
		t.Fatalf("first=%+v", snaps[0])
	}
	if snaps[0].Satellites != nil {
		t.Fatalf("satellites before GGA=%d want nil", *snaps[0].Satellites)
	}
	last := snaps[1]
	if last.Satellites == nil || *last.Satellites != 9 || last.HDOP == nil || *last.HDOP != 1.2 {
		t.Fatalf("last=%+v", last)
	}
	if last.Stats.FailedChecksum != 1 || last.Stats.PassedChecksum != 2 {
		t.Fatalf("stats=%+v", last.Stats)
	}
	if last.Source != "decode" {
		t.Fatalf("source=%q", last.Source)
	}
}

func TestDecodeStream_AllAndSky(t *testing.T) {
	input := "$GPRMC,1*00\n" + line(gsvPayload) + "\n"

	snaps := decodeAll(t, input, decodeOptions{All: true, SkyView: true})
	if len(snaps) != 2 {
		t.Fatalf("snapshots=%d want 2", len(snaps))
	}
	if snaps[0].Stats.FailedChecksum != 1 || snaps[0].Valid {
		t.Fatalf("first=%+v", snaps[0])
	}
	if len(snaps[1].Sky) != 1 || snaps[1].Sky[0].PRN != 7 {
		t.Fatalf("sky=%+v", snaps[1].Sky)
	}
}

func TestDecodeCommand_ReadsStdin(t *testing.T) {
	var out bytes.Buffer
	app := newApp(&out, strings.NewReader(line(rmcPayload)+"\n"))
	if err := app.Run([]string{"gpsfeed", "decode", "-"}); err != nil {
		t.Fatalf("decode command error: %v", err)
	}
	var snap gps.Snapshot
	if err := json.Unmarshal(out.Bytes(), &snap); err != nil {
		t.Fatalf("output is not one snapshot: %v\n%s", err, out.String())
	}
	if !snap.Valid || snap.LatDeg != 30.23664 {
		t.Fatalf("snapshot=%+v", snap)
	}
}
