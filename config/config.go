// Package config loads and holds a node's tunables: elder/adult
// thresholds, replication factor, dysfunction parameters, AE backoff,
// and bootstrap contacts. Grounded on the teacher's key/group.go, which
// round-trips its Group/Identity types through github.com/BurntSushi/toml
// via exported struct fields; generalised here into one flat,
// load-from-disk settings file instead of a DKG group file, since
// novanet has no group-file equivalent of its own.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable spec.md leaves as a named constant or
// "configurable, default N" rather than a hardcoded rule.
type Config struct {
	ElderCount             int      `toml:"elder_count"`
	RecommendedSectionSize int      `toml:"recommended_section_size"`
	ReplicationFactor      int      `toml:"replication_factor"`
	PuzzleDifficulty       int      `toml:"puzzle_difficulty"`
	DysfunctionRetention   Duration `toml:"dysfunction_retention"`
	DysfunctionZScore      float64  `toml:"dysfunction_z_score"`
	AEBackoffInitial       Duration `toml:"ae_backoff_initial"`
	AEBackoffMax           Duration `toml:"ae_backoff_max"`
	AEBackoffBudget        int      `toml:"ae_backoff_budget"`
	BootstrapContacts      []string `toml:"bootstrap_contacts"`
}

// Duration wraps time.Duration so it can round-trip through TOML as a
// "10m"-style string instead of an opaque integer of nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: parsing duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the values named throughout spec.md: elder count 7,
// recommended section size 30, replication factor 4 (§4.I), puzzle
// difficulty 18 (§4.G), dysfunction retention 10m / z-score threshold
// 500 (§4.J), AE backoff 200ms initial / 30s max / 6 attempts (§4.F).
func Default() Config {
	return Config{
		ElderCount:             7,
		RecommendedSectionSize: 30,
		ReplicationFactor:      4,
		PuzzleDifficulty:       18,
		DysfunctionRetention:   Duration{10 * time.Minute},
		DysfunctionZScore:      500,
		AEBackoffInitial:       Duration{200 * time.Millisecond},
		AEBackoffMax:           Duration{30 * time.Second},
		AEBackoffBudget:        6,
	}
}

// Load reads a TOML config file, falling back to Default for any field
// the file doesn't mention.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o640)
}
