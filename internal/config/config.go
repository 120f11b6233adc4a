// Package config loads the process-wide settings described in spec.md
// §6.3 with github.com/spf13/viper, following the precedence flags >
// environment > .env file > defaults. Config is read exactly once at
// process start (spec.md §6.3: "runtime mutations take effect on next
// start"), so there is no reload or watch here by design.
package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds one peer's startup settings.
type Config struct {
	// KVPath is the persistent store's directory. Empty means in-memory.
	KVPath string

	// Port is the listening port for the built-in server transport.
	Port int

	// Peers lists outbound dial addresses attempted at startup.
	Peers []string

	// PeerID is this process's stable identifier, used in the vector
	// clock and every outbound message's originId.
	PeerID string

	// APIPortOffset locates an optional external HTTP surface relative
	// to Port. The core never listens on it itself.
	APIPortOffset int
}

var syncKeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ValidSyncKey reports whether key is a well-formed 32-byte hex sync key,
// per spec.md §4.6's enableSync validation.
func ValidSyncKey(key string) bool {
	return syncKeyPattern.MatchString(key)
}

// Load reads configuration honoring flags > PEERDB_*-prefixed environment
// variables > an optional .env file at envPath > defaults. flags may be
// nil; any non-zero-value field it carries wins outright, matching
// viper's BindPFlag semantics without requiring callers to construct a
// pflag.FlagSet for a handful of settings.
func Load(envPath string, flags *Config) (*Config, error) {
	// godotenv populates the process environment, so it must run before
	// viper.AutomaticEnv reads it. A missing .env file is not an error —
	// it's optional.
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: load .env: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("PEERDB")
	v.AutomaticEnv()

	v.SetDefault("kvpath", "")
	v.SetDefault("port", 7070)
	v.SetDefault("peers", []string{})
	v.SetDefault("peerid", "")
	v.SetDefault("apiportoffset", 1000)

	cfg := &Config{
		KVPath:        v.GetString("kvpath"),
		Port:          v.GetInt("port"),
		Peers:         v.GetStringSlice("peers"),
		PeerID:        v.GetString("peerid"),
		APIPortOffset: v.GetInt("apiportoffset"),
	}

	if flags != nil {
		applyFlagOverrides(cfg, flags)
	}

	if cfg.PeerID == "" {
		cfg.PeerID = uuid.NewString()
	}

	return cfg, nil
}

func applyFlagOverrides(cfg, flags *Config) {
	if flags.KVPath != "" {
		cfg.KVPath = flags.KVPath
	}
	if flags.Port != 0 {
		cfg.Port = flags.Port
	}
	if len(flags.Peers) > 0 {
		cfg.Peers = flags.Peers
	}
	if flags.PeerID != "" {
		cfg.PeerID = flags.PeerID
	}
	if flags.APIPortOffset != 0 {
		cfg.APIPortOffset = flags.APIPortOffset
	}
}
