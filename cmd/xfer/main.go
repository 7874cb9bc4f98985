// Command xfer runs a batch of URL transfers from a TOML job file, or from
// URLs given as arguments, through either scheduler mode and prints a
// per-transfer report.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var errFailed = errors.New("transfers failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "xfer: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("xfer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "path to a TOML job file")
	mode := fs.String("mode", "", "scheduler mode, poll or event; overrides the job file")
	timeout := fs.Duration("timeout", 0, "per-transfer timeout for URL arguments")
	output := fs.String("o", "", "write the body of a single URL argument to this file")
	verbose := fs.Bool("v", false, "log per-transfer detail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var cfg Config
	switch {
	case *cfgPath != "" && fs.NArg() > 0:
		return errors.New("give either -config or URLs, not both")
	case *cfgPath != "":
		c, err := loadConfig(*cfgPath)
		if err != nil {
			return err
		}
		cfg = c
	case fs.NArg() > 0:
		c, err := argsConfig(fs.Args(), *timeout, *output)
		if err != nil {
			return err
		}
		cfg = c
	default:
		fs.Usage()
		return errors.New("nothing to transfer")
	}

	if *mode != "" {
		cfg.Mode = *mode
		if err := Validate(cfg); err != nil {
			return fmt.Errorf("validate flags: %w", err)
		}
	}

	b, err := newBatch(cfg, logger)
	if err != nil {
		return err
	}
	b.skip()

	opts := schedulerOptions(cfg, logger)
	switch cfg.Mode {
	case "event":
		err = runEvent(ctx, b, opts)
	default:
		err = runPoll(ctx, b, opts)
	}

	failed, werr := b.write(stdout)
	err = errors.Join(err, werr, b.close())
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d %w", failed, len(b.handles), errFailed)
	}

	return nil
}

// argsConfig builds a job file for URLs given on the command line.
func argsConfig(urls []string, timeout time.Duration, output string) (Config, error) {
	if output != "" && len(urls) != 1 {
		return Config{}, errors.New("-o needs exactly one URL")
	}

	var cfg Config
	for _, u := range urls {
		j := Job{URL: u, Output: output, FailOnError: true}
		if timeout > 0 {
			j.Timeout = timeout.String()
		}
		cfg.Jobs = append(cfg.Jobs, j)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validate arguments: %w", err)
	}

	return cfg, nil
}
