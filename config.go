package seravault

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seravault/client-go/internal/crypto"
)

// Storage backends understood by the store package.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Config is the file form of the client settings.
type Config struct {
	Session SessionConfig `yaml:"session"`
	KDF     KDFConfig     `yaml:"kdf"`
	Unlock  UnlockConfig  `yaml:"unlock"`
	Storage StorageConfig `yaml:"storage"`
}

// SessionConfig sets how long an unlocked key lives without activity.
type SessionConfig struct {
	TimeoutMinutes         int `yaml:"timeoutMinutes"`
	BackgroundGraceMinutes int `yaml:"backgroundGraceMinutes"`
}

// KDFConfig holds the Argon2id cost used when sealing new envelopes.
type KDFConfig struct {
	Time     uint32 `yaml:"time"`
	MemoryKB uint32 `yaml:"memoryKB"`
	Threads  uint8  `yaml:"threads"`
}

// UnlockConfig throttles unlock attempts. A non-positive
// AttemptsPerMinute disables the limit.
type UnlockConfig struct {
	AttemptsPerMinute float64 `yaml:"attemptsPerMinute"`
	Burst             int     `yaml:"burst"`
}

// StorageConfig selects and configures the ciphertext store backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"`
	Dir           string `yaml:"dir"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	KeyPrefix     string `yaml:"keyPrefix"`
	Retries       int    `yaml:"retries"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TimeoutMinutes:         int(DefaultSessionTimeout / time.Minute),
			BackgroundGraceMinutes: int(DefaultBackgroundGrace / time.Minute),
		},
		KDF: KDFConfig{
			Time:     crypto.DefaultArgonTime,
			MemoryKB: crypto.DefaultArgonMemoryKB,
			Threads:  crypto.DefaultArgonThreads,
		},
		Unlock: UnlockConfig{
			AttemptsPerMinute: defaultUnlockPerMinute,
			Burst:             defaultUnlockBurst,
		},
		Storage: StorageConfig{
			Backend:   StorageMemory,
			Dir:       "seravault-objects",
			RedisAddr: "localhost:6379",
			KeyPrefix: "seravault:object:",
			Retries:   3,
		},
	}
}

// LoadConfig reads a YAML file over the defaults and then applies
// SERAVAULT_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvOverrides replaces fields with SERAVAULT_* environment values.
// Every field has an override:
//
//	SERAVAULT_SESSION_TIMEOUT_MINUTES          session.timeoutMinutes
//	SERAVAULT_SESSION_BACKGROUND_GRACE_MINUTES session.backgroundGraceMinutes
//	SERAVAULT_KDF_TIME                         kdf.time
//	SERAVAULT_KDF_MEMORY_KB                    kdf.memoryKB
//	SERAVAULT_KDF_THREADS                      kdf.threads
//	SERAVAULT_UNLOCK_ATTEMPTS_PER_MINUTE       unlock.attemptsPerMinute
//	SERAVAULT_UNLOCK_BURST                     unlock.burst
//	SERAVAULT_STORAGE_BACKEND                  storage.backend
//	SERAVAULT_STORAGE_DIR                      storage.dir
//	SERAVAULT_REDIS_ADDR                       storage.redisAddr
//	SERAVAULT_REDIS_PASSWORD                   storage.redisPassword
//	SERAVAULT_REDIS_DB                         storage.redisDB
//	SERAVAULT_STORAGE_KEY_PREFIX               storage.keyPrefix
//	SERAVAULT_STORAGE_RETRIES                  storage.retries
//
// A value that does not parse returns ErrInvalidConfig.
func ApplyEnvOverrides(cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"SERAVAULT_STORAGE_BACKEND", &cfg.Storage.Backend},
		{"SERAVAULT_STORAGE_DIR", &cfg.Storage.Dir},
		{"SERAVAULT_REDIS_ADDR", &cfg.Storage.RedisAddr},
		{"SERAVAULT_REDIS_PASSWORD", &cfg.Storage.RedisPassword},
		{"SERAVAULT_STORAGE_KEY_PREFIX", &cfg.Storage.KeyPrefix},
	}
	for _, o := range strs {
		if v := env(o.key); v != "" {
			*o.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SERAVAULT_SESSION_TIMEOUT_MINUTES", &cfg.Session.TimeoutMinutes},
		{"SERAVAULT_SESSION_BACKGROUND_GRACE_MINUTES", &cfg.Session.BackgroundGraceMinutes},
		{"SERAVAULT_UNLOCK_BURST", &cfg.Unlock.Burst},
		{"SERAVAULT_REDIS_DB", &cfg.Storage.RedisDB},
		{"SERAVAULT_STORAGE_RETRIES", &cfg.Storage.Retries},
	}
	for _, o := range ints {
		v := env(o.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(o.key, v)
		}
		*o.dst = n
	}

	if v := env("SERAVAULT_KDF_TIME"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return envError("SERAVAULT_KDF_TIME", v)
		}
		cfg.KDF.Time = uint32(n)
	}
	if v := env("SERAVAULT_KDF_MEMORY_KB"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return envError("SERAVAULT_KDF_MEMORY_KB", v)
		}
		cfg.KDF.MemoryKB = uint32(n)
	}
	if v := env("SERAVAULT_KDF_THREADS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return envError("SERAVAULT_KDF_THREADS", v)
		}
		cfg.KDF.Threads = uint8(n)
	}
	if v := env("SERAVAULT_UNLOCK_ATTEMPTS_PER_MINUTE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return envError("SERAVAULT_UNLOCK_ATTEMPTS_PER_MINUTE", v)
		}
		cfg.Unlock.AttemptsPerMinute = f
	}
	return nil
}

func envError(key, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, value)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	if c.Session.TimeoutMinutes <= 0 {
		return fmt.Errorf("%w: session.timeoutMinutes must be positive", ErrInvalidConfig)
	}
	if c.Session.BackgroundGraceMinutes <= 0 {
		return fmt.Errorf("%w: session.backgroundGraceMinutes must be positive", ErrInvalidConfig)
	}
	kdf := crypto.Argon2Params{Time: c.KDF.Time, MemoryKB: c.KDF.MemoryKB, Threads: c.KDF.Threads}
	if err := kdf.Validate(); err != nil {
		return fmt.Errorf("%w: kdf: %v", ErrInvalidConfig, err)
	}
	if c.Unlock.AttemptsPerMinute > 0 && c.Unlock.Burst < 1 {
		return fmt.Errorf("%w: unlock.burst must be at least 1", ErrInvalidConfig)
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("%w: storage.dir is required for the file backend", ErrInvalidConfig)
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("%w: storage.redisAddr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}
	if c.Storage.Retries < 0 {
		return fmt.Errorf("%w: storage.retries must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Options converts the settings to functional options.
func (c Config) Options() []Option {
	return []Option{
		WithSessionTimeout(time.Duration(c.Session.TimeoutMinutes) * time.Minute),
		WithBackgroundGrace(time.Duration(c.Session.BackgroundGraceMinutes) * time.Minute),
		WithKDFParams(KDFParams{
			Algorithm: crypto.KDFArgon2id,
			Time:      c.KDF.Time,
			MemoryKB:  c.KDF.MemoryKB,
			Threads:   c.KDF.Threads,
		}),
		WithUnlockRate(c.Unlock.AttemptsPerMinute, c.Unlock.Burst),
	}
}
