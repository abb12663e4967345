package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/livepsg"
	"github.com/cbegin/livepsg/internal/config"
	"github.com/cbegin/livepsg/internal/watch"
)

var errPlaybackEnded = errors.New("playback ended")

func main() {
	var (
		scorePath  = flag.String("file", "", "path to a score file; it is reloaded on save")
		configPath = flag.String("config", "", "path to a YAML config file")
		section    = flag.String("section", "", "start at this section")
		noLoop     = flag.Bool("noloop", false, "stop at the end of the section list")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (overrides config)")
		frameRate  = flag.Float64("frame-rate", 0, "chip frames per second (overrides config)")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
	)
	flag.Parse()

	if *scorePath == "" {
		fmt.Fprintln(os.Stderr, "livepsg: -file is required")
		flag.Usage()
		os.Exit(2)
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal(err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "section":
			cfg.Section = *section
		case "noloop":
			cfg.Loop = !*noLoop
		case "sample-rate":
			cfg.SampleRate = *sampleRate
		case "frame-rate":
			cfg.FrameRate = *frameRate
		}
	})
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}
	logger := newLogger(cfg)
	interval, _ := cfg.Interval()

	path, err := homedir.Expand(*scorePath)
	if err != nil {
		fatal(err)
	}
	pl, err := livepsg.NewPlayer(livepsg.WithConfig(cfg), livepsg.WithLogger(logger))
	if err != nil {
		fatal(err)
	}
	pl.SetMasterVolume(*volume)

	w := watch.New(path, pl.Update, watch.WithInterval(interval), watch.WithLogger(logger))
	if _, err := w.Poll(); err != nil {
		fatal(err)
	}
	if err := pl.Play(); err != nil {
		fatal(err)
	}
	logger.Info("Playing", "path", path, "loop", cfg.Loop, "section", cfg.Section)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	done := pl.Done()
	g.Go(func() error {
		select {
		case <-done:
			return errPlaybackEnded
		case <-gctx.Done():
			return nil
		}
	})
	err = g.Wait()
	if stopErr := pl.Stop(); stopErr != nil {
		logger.Warn("Stop failed", "err", stopErr)
	}
	switch {
	case errors.Is(err, errPlaybackEnded):
		logger.Info("Playback completed")
	case err != nil:
		fatal(err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.Level()
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "livepsg: %v\n", err)
	os.Exit(1)
}
