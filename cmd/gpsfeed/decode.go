package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gpsfeed/internal/gps"
)

type decodeOptions struct {
	SkyView bool
	// All prints a snapshot after every line, not only after sentences
	// that passed their checksum.
	All bool
}

// decodeStream runs in through the same service the live runtime uses and
// writes one JSON snapshot per decoded sentence to out.
func decodeStream(ctx context.Context, in io.Reader, out io.Writer, opts decodeOptions) error {
	svc := gps.New(gps.Config{Enable: true, Source: "decode", SkyView: opts.SkyView}, nil)
	enc := json.NewEncoder(out)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		before := svc.Stats().PassedChecksum
		// The decoder commits on the carriage return.
		err := svc.Consume(ctx, strings.NewReader(line+"\r\n"))
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if !opts.All && svc.Stats().PassedChecksum == before {
			continue
		}
		if err := enc.Encode(svc.Snapshot()); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	return sc.Err()
}
