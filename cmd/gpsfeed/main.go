package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"gpsfeed/internal/config"
	"gpsfeed/internal/logging"
)

func main() {
	if err := newApp(os.Stdout, os.Stdin).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "gpsfeed: %v\n", err)
		os.Exit(1)
	}
}

func newApp(stdout io.Writer, stdin io.Reader) *cli.App {
	return &cli.App{
		Name:            "gpsfeed",
		Usage:           "decode NMEA-0183 GPS data and publish fixes",
		HideHelpCommand: true,
		Writer:          stdout,
		Reader:          stdin,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "read a receiver (or a replay log) and publish snapshots",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Value:   "./gpsfeed.yaml",
						Usage:   "load configuration from `FILE`",
					},
				},
				Action: runAction,
			},
			{
				Name:      "decode",
				Usage:     "decode NMEA from a file, or stdin when FILE is '-' or omitted",
				ArgsUsage: "[FILE|-]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "sky", Usage: "assemble GSV sentences into a satellite table"},
					&cli.BoolFlag{Name: "all", Usage: "print a snapshot for every line, including failed checksums"},
				},
				Action: decodeAction,
			},
			{
				Name:      "summary",
				Usage:     "summarize a recorded NMEA log",
				ArgsUsage: "LOG",
				Action:    summaryAction,
			},
		},
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger, closer, err := logging.New(cfg.Log, "gpsfeed", c.App.ErrWriter)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newLiveRuntime(cfg, logger)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

func decodeAction(c *cli.Context) error {
	path := c.Args().First()
	var in io.Reader = c.App.Reader
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	return decodeStream(context.Background(), in, c.App.Writer, decodeOptions{
		SkyView: c.Bool("sky"),
		All:     c.Bool("all"),
	})
}

func summaryAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("summary needs exactly one LOG argument")
	}
	return printLogSummary(c.App.Writer, c.Args().First())
}
