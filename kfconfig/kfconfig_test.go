package kfconfig

import (
	"os"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate(): %v", err)
	}
}

func TestValidateRejectsNonMultiplePageSize(t *testing.T) {
	cfg := Config{PageSize: uint32(os.Getpagesize()) + 1, MaxPayloadSize: 64}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for page size not a multiple of the OS page size")
	}
}

func TestValidateRejectsOversizedMaxPayload(t *testing.T) {
	pageSize := uint32(os.Getpagesize())
	cfg := Config{PageSize: pageSize, MaxPayloadSize: pageSize}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when max frame size exceeds page size")
	}
}

func TestMaxFrameSize(t *testing.T) {
	cfg := Config{PageSize: uint32(os.Getpagesize()), MaxPayloadSize: 100}
	if got, want := cfg.MaxFrameSize(), uint64(FrameHeaderLength)+100; got != want {
		t.Fatalf("MaxFrameSize() = %d, want %d", got, want)
	}
}
