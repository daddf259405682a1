// Package photopicker provides the core of a photo picker: a decode pipeline
// with a shared image cache, a tiered local/network fetcher, an ordered
// selection store with validation rules, and an interactive push/pop
// transition state machine driven by drag gestures.
//
// The package renders nothing. Hosts supply views and surfaces through the
// transition package interfaces and draw whatever a Session reports.
package photopicker

import (
	"log/slog"
	"os"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
)

// Options configures the picker core initialization.
type Options struct {
	LogPath    string // Full path for log file including filename (creates parent directories)
	LogLevel   string // Application log level, overridden by PHOTOPICKER_LOG_LEVEL
	ConfigPath string // Picker configuration file, overridden by PHOTOPICKER_CONFIG
}

// Init sets up logging and loads the picker configuration. A missing
// configuration path yields DefaultConfig.
// Call before creating any Session.
func Init(options Options) (Config, error) {
	if options.LogPath != "" {
		internal.SetLogPath(options.LogPath)
	}

	if constants.IsDevMode() {
		internal.SetInternalLogLevel(slog.LevelDebug)
	} else {
		internal.SetInternalLogLevel(slog.LevelError)
	}

	level := options.LogLevel
	if env := os.Getenv(constants.LogLevelEnvVar); env != "" {
		level = env
	}
	if level != "" {
		internal.SetRawLogLevel(level)
	}

	path := options.ConfigPath
	if env := os.Getenv(constants.ConfigEnvVar); env != "" {
		path = env
	}
	if path == "" {
		return DefaultConfig(), nil
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		internal.GetLogger().Error("Failed to load picker config", "path", path, "error", err)
		return DefaultConfig(), err
	}

	internal.GetLogger().Debug("Picker config loaded", "path", path, "locale", cfg.Locale)
	return cfg, nil
}

// Close releases the log file. Call before program exit.
func Close() {
	internal.CloseLogger()
}

// SetLogPath sets the full path for the log file, including filename.
// Creates all necessary parent directories.
// Call before Init() to take effect during initialization.
func SetLogPath(path string) {
	internal.SetLogPath(path)
}

// GetLogger returns the application logger for structured logging.
func GetLogger() *slog.Logger {
	return internal.GetLogger()
}

// SetLogLevel sets the minimum log level for the application logger.
func SetLogLevel(level slog.Level) {
	internal.SetLogLevel(level)
}

// SetRawLogLevel parses and sets the log level from a string (e.g., "debug", "info", "error").
func SetRawLogLevel(level string) {
	internal.SetRawLogLevel(level)
}
