// Package config loads and validates the host configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/testangel/testangel-sdk/domain/entities"
	domainerrors "github.com/testangel/testangel-sdk/domain/errors"
	"github.com/testangel/testangel-sdk/domain/ports"
	"github.com/testangel/testangel-sdk/host/registry"
)

// DefaultLogLevel is used when the configuration names none.
const DefaultLogLevel = "info"

// Default returns the configuration used when no file is given.
func Default() *entities.HostConfig {
	return &entities.HostConfig{
		EngineDir:           registry.DefaultEngineDir,
		AcceptedIPCVersions: []uint32{entities.CurrentIPCVersion},
		LogLevel:            DefaultLogLevel,
	}
}

// Load reads the configuration at path with parser and layers it over
// Default. A missing file is not an error when optional is true. The
// engine directory from the environment wins over the file.
func Load(path string, parser ports.ConfigParser, optional bool) (*entities.HostConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			fromFile, err := parser.Parse(data)
			if err != nil {
				return nil, &domainerrors.ConfigError{Err: err}
			}
			merge(cfg, fromFile)
		case optional && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, &domainerrors.ConfigError{Err: fmt.Errorf("failed to read config: %w", err)}
		}
	}

	if dir := os.Getenv(registry.EnvEngineDir); dir != "" {
		cfg.EngineDir = dir
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies the fields set in src over dst.
func merge(dst, src *entities.HostConfig) {
	if src.EngineDir != "" {
		dst.EngineDir = src.EngineDir
	}
	if len(src.AcceptedIPCVersions) > 0 {
		dst.AcceptedIPCVersions = src.AcceptedIPCVersions
	}
	if src.LogLevel != "" {
		dst.LogLevel = strings.ToLower(src.LogLevel)
	}
	if src.ApprovalsFile != "" {
		dst.ApprovalsFile = src.ApprovalsFile
	}
	if !src.Trust.Empty() {
		dst.Trust = src.Trust
	}
	if src.MaxLogMessageSize != 0 {
		dst.MaxLogMessageSize = src.MaxLogMessageSize
	}
	dst.DisableMemoization = dst.DisableMemoization || src.DisableMemoization
}

// Validate checks cfg, reporting the first offending field as a
// ConfigError.
func Validate(cfg *entities.HostConfig) error {
	err := cfg.Validate()
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &domainerrors.ConfigError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("failed on the '%s' rule", fe.Tag()),
		}
	}
	return &domainerrors.ConfigError{Err: err}
}

// SlogLevel maps a configured level name onto slog. Names are matched
// case-insensitively; the empty name is DefaultLogLevel.
func SlogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "trace":
		return entities.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &domainerrors.ConfigError{
			Field: "log_level",
			Err:   fmt.Errorf("unknown level %q", name),
		}
	}
}
