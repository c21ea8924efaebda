package main

import (
	"testing"

	"github.com/kungfu-go/kfjournal/journal"
	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/location"
	"github.com/kungfu-go/kfjournal/metrics"
)

func TestRunNoArgs(t *testing.T) {
	if code := run(nil); code != 1 {
		t.Fatalf("run(nil) = %d, want 1", code)
	}
}

func TestRunUnknownSubcommand(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != 1 {
		t.Fatalf("run with unknown subcommand = %d, want 1", code)
	}
}

func TestRunLSAndCat(t *testing.T) {
	t.Setenv("KF_HOME", t.TempDir())
	t.Setenv("KF_RUNTIME_DIR", "")

	lr, err := location.NewLocator(location.ModeLive)
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	loc := location.New(lr, location.ModeLive, location.CategorySystem, "t", "t")
	cfg := kfconfig.Default()
	w, err := journal.NewWriter(loc, location.DestPublic, cfg, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	f, err := w.OpenFrame(1, 101, 5)
	if err != nil {
		t.Fatalf("OpenFrame: %v", err)
	}
	f.CopyData([]byte("hello"), 5)
	if err := w.CloseFrame(5, journal.NowInNano()); err != nil {
		t.Fatalf("CloseFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if code := run([]string{"ls", "-category", "system"}); code != 0 {
		t.Fatalf("run(ls) = %d, want 0", code)
	}
	if code := run([]string{"cat", "-category", "system", "-group", "t", "-name", "t"}); code != 0 {
		t.Fatalf("run(cat) = %d, want 0", code)
	}
	if code := run([]string{"stat", "-category", "system", "-group", "t", "-name", "t"}); code != 0 {
		t.Fatalf("run(stat) = %d, want 0", code)
	}

	if code := run([]string{"-log-level", "debug", "-log-format", "color", "ls", "-category", "system"}); code != 0 {
		t.Fatalf("run(ls) with log flags = %d, want 0", code)
	}
}

func TestRunMetricsOnce(t *testing.T) {
	metrics.FramesWritten.Inc()

	if code := run([]string{"metrics", "-once"}); code != 0 {
		t.Fatalf("run(metrics -once) = %d, want 0", code)
	}
}
