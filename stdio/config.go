package stdio

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config is the transport's configuration surface, per spec.md §6. The zero
// value is not the default set: it disables the request timeout and leaves
// the write queue capacity at 0 (clamped to 1 by the queue). NewConfig
// returns the documented defaults.
type Config struct {
	RequestTimeoutMs  uint64
	IdleReadTimeoutMs uint64
	WriteTimeoutMs    uint64
	WriteQueueMaxBytes int
}

// EnvRequestTimeoutMs is the environment variable that, when set to a
// parseable unsigned integer, overrides the default request timeout at
// construction (spec.md §6).
const EnvRequestTimeoutMs = "MCP_STDIOTRANSPORT_TIMEOUT_MS"

// NewConfig returns the documented defaults, applying the environment
// override for the request timeout if present.
func NewConfig() Config {
	cfg := Config{
		RequestTimeoutMs:   30000,
		IdleReadTimeoutMs:  0,
		WriteTimeoutMs:     0,
		WriteQueueMaxBytes: 2 * 1024 * 1024,
	}
	if v := os.Getenv(EnvRequestTimeoutMs); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.RequestTimeoutMs = n
		}
	}
	return cfg
}

// ParseConfig parses the flat "key=value" string surface from spec.md §6,
// pairs separated by ';' or whitespace. Unknown keys are ignored. Starts
// from NewConfig's defaults (including the environment override) and
// overlays any keys present in s.
func ParseConfig(s string) (Config, error) {
	cfg := NewConfig()
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			return cfg, errors.Errorf("stdio: invalid config entry %q", field)
		}
		key := strings.TrimSpace(field[:eq])
		value := strings.TrimSpace(field[eq+1:])
		n, err := strconv.ParseUint(value, 10, 64)
		switch strings.ToLower(key) {
		case "timeout_ms":
			if err != nil {
				return cfg, errors.Wrapf(err, "stdio: timeout_ms=%q", value)
			}
			cfg.RequestTimeoutMs = n
		case "idle_read_timeout_ms":
			if err != nil {
				return cfg, errors.Wrapf(err, "stdio: idle_read_timeout_ms=%q", value)
			}
			cfg.IdleReadTimeoutMs = n
		case "write_timeout_ms":
			if err != nil {
				return cfg, errors.Wrapf(err, "stdio: write_timeout_ms=%q", value)
			}
			cfg.WriteTimeoutMs = n
		case "write_queue_max_bytes":
			if err != nil {
				return cfg, errors.Wrapf(err, "stdio: write_queue_max_bytes=%q", value)
			}
			cfg.WriteQueueMaxBytes = int(n)
		default:
			// unknown keys are ignored, per spec.md §6
		}
	}
	if cfg.WriteQueueMaxBytes <= 0 {
		cfg.WriteQueueMaxBytes = 1
	}
	return cfg, nil
}

func durationOrZero(ms uint64) time.Duration {
	if ms == 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
