// Package config loads wsfragd settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/coregx/wsfrag/websocket"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "WSFRAG_"

// Relay modes.
const (
	ModeEcho      = "echo"
	ModeBroadcast = "broadcast"
)

// Errors returned by Validate and ParseExtensions.
var (
	ErrInvalidPort      = errors.New("config: invalid port")
	ErrInvalidMode      = errors.New("config: mode must be echo or broadcast")
	ErrInvalidPath      = errors.New("config: paths must start with / and differ")
	ErrInvalidSize      = errors.New("config: sizes must not be negative")
	ErrInvalidExtension = errors.New("config: invalid extension")
	ErrInvalidLogLevel  = errors.New("config: invalid log level")
)

// Config holds the relay settings.
type Config struct {
	Host        string `env:"HOST"         envDefault:""`
	Port        string `env:"PORT"         envDefault:"8080"`
	Path        string `env:"PATH"         envDefault:"/ws"`
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Mode is echo (reply to the sender) or broadcast (send to every client).
	Mode string `env:"MODE" envDefault:"echo"`

	// FragmentSize is the largest payload per outbound frame, 0 disables fragmentation.
	FragmentSize   int  `env:"FRAGMENT_SIZE"    envDefault:"1024"`
	MaxMessageSize int  `env:"MAX_MESSAGE_SIZE" envDefault:"33554432"`
	LenientUTF8    bool `env:"LENIENT_UTF8"     envDefault:"false"`

	// Extensions lists RSV extensions as name:rsv pairs, e.g. "x-compress:4,x-trace:1".
	// A trailing "!" on the rsv marks the bits as first-frame-only ("x-compress:4!").
	Extensions []string `env:"EXTENSIONS" envSeparator:","`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
}

// NewConfig parses the environment using opts.
// An empty opts.Prefix is replaced with EnvPrefix.
func NewConfig(opts env.Options) (Config, error) {
	if opts.Prefix == "" {
		opts.Prefix = EnvPrefix
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges and the extension list.
func (c Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil || port < 0 || port > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, c.Port)
	}

	if c.Mode != ModeEcho && c.Mode != ModeBroadcast {
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}

	if !strings.HasPrefix(c.Path, "/") || !strings.HasPrefix(c.MetricsPath, "/") || c.Path == c.MetricsPath {
		return fmt.Errorf("%w: %q, %q", ErrInvalidPath, c.Path, c.MetricsPath)
	}

	if c.FragmentSize < 0 || c.MaxMessageSize < 0 {
		return ErrInvalidSize
	}

	if _, err := c.LogLevelValue(); err != nil {
		return err
	}

	_, err = ParseExtensions(c.Extensions)
	return err
}

// Address returns host:port for the listener.
func (c Config) Address() string {
	return c.Host + ":" + c.Port
}

// LogLevelValue maps LogLevel to a slog level.
func (c Config) LogLevelValue() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
	return level, nil
}

// ParseExtensions converts name:rsv entries into websocket extensions.
//
// rsv is the 3-bit value (RSV1 = 4, RSV2 = 2, RSV3 = 1). Blank entries are skipped.
func ParseExtensions(entries []string) ([]websocket.Extension, error) {
	var exts []websocket.Extension
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, rsvText, ok := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidExtension, entry)
		}

		rsvText = strings.TrimSpace(rsvText)
		firstOnly := strings.HasSuffix(rsvText, "!")
		rsvText = strings.TrimSuffix(rsvText, "!")

		rsv, err := strconv.ParseUint(rsvText, 10, 8)
		if err != nil || rsv == 0 || rsv > 7 {
			return nil, fmt.Errorf("%w: %q rsv must be 1-7", ErrInvalidExtension, entry)
		}

		exts = append(exts, websocket.Extension{
			Name:           name,
			RSV:            byte(rsv),
			FirstFrameOnly: firstOnly,
		})
	}
	return exts, nil
}
