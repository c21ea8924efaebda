package journal

import (
	"os"
	"testing"

	"github.com/kungfu-go/kfjournal/kfconfig"
	"github.com/kungfu-go/kfjournal/location"
)

// testLocator returns a Locator rooted at a fresh temp directory.
func testLocator(t *testing.T) *location.Locator {
	t.Helper()
	t.Setenv("KF_HOME", t.TempDir())
	t.Setenv("KF_RUNTIME_DIR", "")
	lr, err := location.NewLocator(location.ModeLive)
	if err != nil {
		t.Fatalf("NewLocator: %v", err)
	}
	return lr
}

// testConfig returns a Config with a small page size so rollover tests
// don't need to write hundreds of megabytes. The page size is still a
// multiple of the OS page size, as Validate requires.
func testConfig(t *testing.T) kfconfig.Config {
	t.Helper()
	pageSize := uint32(os.Getpagesize())
	cfg := kfconfig.Config{PageSize: pageSize, MaxPayloadSize: 64}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return cfg
}
