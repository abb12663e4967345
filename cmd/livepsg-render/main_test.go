package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"github.com/mitchellh/go-homedir"
)

const score = `
speed = 2
p = program {tone = 1; level = 15; pitch = 60}
sections = (E(p, "1 1"),),
`

func TestRunExpandsOutputPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	homedir.DisableCache = true
	t.Cleanup(func() { homedir.DisableCache = false })

	scorePath := filepath.Join(home, "song.psg")
	if err := os.WriteFile(scorePath, []byte(score), 0o644); err != nil {
		t.Fatalf("write score: %v", err)
	}
	for _, format := range []string{"txt", "mid", "wav"} {
		t.Run(format, func(t *testing.T) {
			if err := run("~/song.psg", "", "", 8, true, format, "~/out."+format); err != nil {
				t.Fatalf("run: %v", err)
			}
			info, err := os.Stat(filepath.Join(home, "out."+format))
			if err != nil {
				t.Fatalf("output not written under home: %v", err)
			}
			if info.Size() == 0 {
				t.Fatalf("empty %s output", format)
			}
		})
	}

	f, err := os.Open(filepath.Join(home, "out.wav"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	if !wav.NewDecoder(f).IsValidFile() {
		t.Fatalf("out.wav is not a wav file")
	}
	if _, err := os.Stat(filepath.Join(".", "~")); err == nil {
		t.Fatalf("a literal ~ directory was created")
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	tests := []struct {
		name                   string
		scorePath, format, out string
		frames                 int
		want                   string
	}{
		{"no score", "", "txt", "", 1, "-file"},
		{"no frames", "x", "txt", "", 0, "-frames"},
		{"missing score", filepath.Join(t.TempDir(), "missing"), "txt", "", 1, "read score"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.scorePath, "", "", tc.frames, false, tc.format, tc.out)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %s", err, tc.want)
			}
		})
	}
}
