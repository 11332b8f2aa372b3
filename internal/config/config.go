package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "ROONCTL_"

type Config struct {
	Mode       string        `mapstructure:"mode" env:"MODE"`
	Port       int           `mapstructure:"port" env:"PORT"`
	StaticPath string        `mapstructure:"static_path" env:"STATIC_PATH"`
	ReadLimit  int64         `mapstructure:"read_limit" env:"READ_LIMIT"`
	PingPeriod time.Duration `mapstructure:"ping_period" env:"PING_PERIOD"`
	WriteWait  time.Duration `mapstructure:"write_wait" env:"WRITE_WAIT"`
	SendBuffer int           `mapstructure:"send_buffer" env:"SEND_BUFFER"`
	Secret     string        `mapstructure:"secret" env:"SECRET"`
	LogLevel   string        `mapstructure:"log_level" env:"LOG_LEVEL"`

	// Backpressure is what happens to a client whose send buffer is full:
	// "kick" closes it, "drop" skips the frame.
	Backpressure   string        `mapstructure:"backpressure" env:"BACKPRESSURE"`
	VolumeBurst    int           `mapstructure:"volume_burst" env:"VOLUME_BURST"`
	VolumeInterval time.Duration `mapstructure:"volume_interval" env:"VOLUME_INTERVAL"`

	Upstream  Upstream  `mapstructure:"upstream" envPrefix:"UPSTREAM_"`
	Extension Extension `mapstructure:"extension" envPrefix:"EXTENSION_"`
	Image     Image     `mapstructure:"image" envPrefix:"IMAGE_"`
}

type Upstream struct {
	Address          string        `mapstructure:"address" env:"ADDRESS"`
	Discovery        bool          `mapstructure:"discovery" env:"DISCOVERY"`
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout" env:"DISCOVERY_TIMEOUT"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay" env:"RECONNECT_DELAY"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" env:"REQUEST_TIMEOUT"`
	StatePath        string        `mapstructure:"state_path" env:"STATE_PATH"`
}

// Extension is how this server introduces itself to the controller.
type Extension struct {
	ID             string `mapstructure:"id" env:"ID"`
	DisplayName    string `mapstructure:"display_name" env:"DISPLAY_NAME"`
	DisplayVersion string `mapstructure:"display_version" env:"DISPLAY_VERSION"`
	Publisher      string `mapstructure:"publisher" env:"PUBLISHER"`
	Email          string `mapstructure:"email" env:"EMAIL"`
	Website        string `mapstructure:"website" env:"WEBSITE"`
}

// Image holds the defaults for artwork requests.
type Image struct {
	Width  int           `mapstructure:"width" env:"WIDTH"`
	Height int           `mapstructure:"height" env:"HEIGHT"`
	Scale  string        `mapstructure:"scale" env:"SCALE"`
	Format string        `mapstructure:"format" env:"FORMAT"`
	MaxAge time.Duration `mapstructure:"max_age" env:"MAX_AGE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("log_level", "info")
	v.SetDefault("backpressure", "kick")
	v.SetDefault("volume_burst", 5)
	v.SetDefault("volume_interval", "500ms")

	v.SetDefault("upstream.address", "")
	v.SetDefault("upstream.discovery", true)
	v.SetDefault("upstream.discovery_timeout", "5s")
	v.SetDefault("upstream.reconnect_delay", "3s")
	v.SetDefault("upstream.request_timeout", "10s")
	v.SetDefault("upstream.state_path", "./roonctl.db")

	v.SetDefault("extension.id", "com.dkeye.rooncontroller")
	v.SetDefault("extension.display_name", "RoonController Display")
	v.SetDefault("extension.display_version", "1.0.0")
	v.SetDefault("extension.publisher", "dkeye")
	v.SetDefault("extension.email", "")
	v.SetDefault("extension.website", "")

	v.SetDefault("image.width", 800)
	v.SetDefault("image.height", 800)
	v.SetDefault("image.scale", "fit")
	v.SetDefault("image.format", "image/jpeg")
	v.SetDefault("image.max_age", "1h")
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then ROONCTL_*
// variables, each layer overriding the one before.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("read .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	envName := os.Getenv("CONFIG_ENV")
	if envName == "" {
		envName = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", envName)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("upstream", cfg.Upstream.Address).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Backpressure {
	case "kick", "drop":
	default:
		return fmt.Errorf("invalid backpressure %q: want kick or drop", c.Backpressure)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive")
	}
	if c.Upstream.Address == "" && !c.Upstream.Discovery {
		return fmt.Errorf("upstream.address is required when discovery is off")
	}
	return nil
}
