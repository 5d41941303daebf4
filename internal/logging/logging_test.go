package logging_test

import (
	"testing"

	"github.com/roomrelay/roomrelay/internal/logging"
)

func TestLeveledHelpersRespectConfiguredLevel(t *testing.T) {
	logging.Init(logging.Config{Level: "warn"})

	if logging.Debug().Enabled() {
		t.Error("debug enabled at warn level")
	}
	if logging.Info().Enabled() {
		t.Error("info enabled at warn level")
	}
	if !logging.Warn().Enabled() {
		t.Error("warn disabled at warn level")
	}
	if !logging.Error().Enabled() {
		t.Error("error disabled at warn level")
	}

	// Unknown and empty levels fall back to info.
	logging.Init(logging.Config{Level: "verbose"})
	if logging.Debug().Enabled() {
		t.Error("debug enabled after fallback to info")
	}
	if !logging.Info().Enabled() {
		t.Error("info disabled after fallback to info")
	}
}

func TestInitConsoleFormat(t *testing.T) {
	logging.Init(logging.Config{Level: "info", Format: "console"})
	logging.Info().Str("check", "console").Msg("console writer works")

	// Reset for other tests in the binary.
	logging.Init(logging.Config{})
}
