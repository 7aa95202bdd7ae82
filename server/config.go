package server

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/lwansbrough/craft2/craft"
	"github.com/lwansbrough/craft2/storage"
	"github.com/lwansbrough/craft2/volume"
)

const (
	// DefaultWebAddress is the HTTP address used when none is configured.
	DefaultWebAddress = "localhost:8000"

	// DefaultCacheSize is the GPU buffer cache size in MB.
	DefaultCacheSize = 64

	// DefaultLoadConcurrency bounds how many snapshots are decoded at once on startup.
	DefaultLoadConcurrency = 4

	// MaxBodyBytes limits request bodies.
	MaxBodyBytes = 64 * craft.Mega
)

// Config is the TOML server configuration.
type Config struct {
	Server  serverConfig
	Auth    authConfig
	Logging craft.LogConfig
	Store   storage.StoreConfig
	Cache   cacheConfig
	Kafka   storage.KafkaConfig
	Volume  volumeConfig
}

type serverConfig struct {
	HTTPAddress     string   `toml:"httpAddress"`
	Host            string   `toml:"host"`
	Note            string   `toml:"note"`
	MaxConnections  int      `toml:"max_connections"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	ShutdownDelay   int      `toml:"shutdown_delay"` // seconds
	LoadConcurrency int      `toml:"load_concurrency"`
}

type cacheConfig struct {
	Size int // MB; zero disables the cache
}

type volumeConfig struct {
	VoxelsPerMeter uint32 `toml:"voxels_per_meter"`
	Compression    string
}

// DefaultConfig returns a config serving on DefaultWebAddress from an in-memory badger store.
func DefaultConfig() Config {
	return Config{
		Server: serverConfig{
			HTTPAddress:     DefaultWebAddress,
			AllowedOrigins:  []string{"*"},
			ShutdownDelay:   5,
			LoadConcurrency: DefaultLoadConcurrency,
		},
		Store: storage.StoreConfig{
			Engine:   "badger",
			InMemory: true,
		},
		Cache: cacheConfig{Size: DefaultCacheSize},
		Volume: volumeConfig{
			Compression: "snappy",
		},
	}
}

// LoadConfig reads a TOML config file over the defaults.  Relative paths in the file are
// resolved against the file's directory.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no server TOML configuration file provided")
	}
	c := DefaultConfig()
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config %q: %v", filename, err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("bad config %q: %w", filename, err)
	}
	return &c, nil
}

func (c *Config) convertPathsToAbsolute(configPath string) error {
	dir := filepath.Dir(configPath)
	var err error
	if c.Logging.Logfile, err = craft.ConvertToAbsolute(c.Logging.Logfile, dir); err != nil {
		return err
	}
	if c.Auth.AuthFile, err = craft.ConvertToAbsolute(c.Auth.AuthFile, dir); err != nil {
		return err
	}
	if c.Store.Path, err = craft.ConvertToAbsolute(c.Store.Path, dir); err != nil {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := craft.ParseCompression(c.Volume.Compression); err != nil {
		return err
	}
	if c.Store.Engine == "" {
		return fmt.Errorf("no storage engine given in [store]")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store %q needs a path unless in_memory is set", c.Store.Engine)
	}
	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}
	return nil
}

// CacheSize returns the GPU buffer cache size in bytes.
func (c *Config) CacheSize() int {
	return c.Cache.Size * craft.Mega
}

func (c *Config) shutdownDelay() time.Duration {
	return time.Duration(c.Server.ShutdownDelay) * time.Second
}

func (c *Config) voxelsPerMeter() uint32 {
	if c.Volume.VoxelsPerMeter == 0 {
		return volume.DefaultVoxelsPerMeter
	}
	return c.Volume.VoxelsPerMeter
}
