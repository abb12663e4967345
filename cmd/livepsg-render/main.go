package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/cbegin/livepsg"
	"github.com/cbegin/livepsg/internal/config"
	"github.com/cbegin/livepsg/internal/export"
)

func main() {
	var (
		scorePath  = flag.String("file", "", "path to a score file")
		configPath = flag.String("config", "", "path to a YAML config file")
		section    = flag.String("section", "", "start at this section")
		frames     = flag.Int("frames", 500, "number of chip frames to render")
		noLoop     = flag.Bool("noloop", false, "stop at the end of the section list")
		format     = flag.String("format", "txt", "output format: txt|wav|mid")
		outPath    = flag.String("o", "", "output file (default stdout; required for wav)")
	)
	flag.Parse()

	if err := run(*scorePath, *configPath, *section, *frames, *noLoop, *format, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "livepsg-render: %v\n", err)
		os.Exit(1)
	}
}

func run(scorePath, configPath, section string, frames int, noLoop bool, format, outPath string) error {
	if scorePath == "" {
		return errors.New("-file is required")
	}
	if frames <= 0 {
		return errors.Errorf("-frames must be positive, got %d", frames)
	}
	cfg := config.Default()
	if configPath != "" {
		path, err := homedir.Expand(configPath)
		if err != nil {
			return err
		}
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	if section != "" {
		cfg.Section = section
	}
	if noLoop {
		cfg.Loop = false
	}
	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	path, err := homedir.Expand(scorePath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read score")
	}
	if outPath != "" {
		if outPath, err = homedir.Expand(outPath); err != nil {
			return err
		}
	}
	opts := []livepsg.Option{livepsg.WithConfig(cfg), livepsg.WithLogger(logger)}

	switch strings.ToLower(format) {
	case "txt":
		r, err := livepsg.RenderFrames(string(data), frames, opts...)
		if err != nil {
			return err
		}
		return withOutput(outPath, func(w io.Writer) error {
			return export.WriteText(w, r.Names, r.Frames)
		})
	case "mid":
		r, err := livepsg.RenderFrames(string(data), frames, opts...)
		if err != nil {
			return err
		}
		return withOutput(outPath, func(w io.Writer) error {
			return export.WriteSMF(w, r.Names, r.Frames, r.FrameRate)
		})
	case "wav":
		if outPath == "" {
			return errors.New("-o is required for wav output")
		}
		samples, err := livepsg.RenderSamples(string(data), frames, opts...)
		if err != nil {
			return err
		}
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		if err := livepsg.WriteWAV(f, samples, cfg.SampleRate, 2); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return errors.Errorf("invalid -format %q (expected txt|wav|mid)", format)
	}
}

func withOutput(path string, write func(io.Writer) error) error {
	if path == "" {
		bw := bufio.NewWriter(os.Stdout)
		if err := write(bw); err != nil {
			return err
		}
		return bw.Flush()
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
