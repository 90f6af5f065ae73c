// Package config holds the process-wide configuration. It is loaded
// once at startup and passed by pointer into every component.
package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	// DatabaseFile is the name of the database file inside an index.
	DatabaseFile = "index.db"
	// ThumbnailDir is the name of the thumbnail directory inside an index.
	ThumbnailDir = ".thumbnails"
)

type Config struct {
	// IndexLocation is the working directory holding the database file
	// and thumbnail storage of one catalogue instance.
	IndexLocation string `mapstructure:"indexLocation"`

	Listen struct {
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
		// TLSCert and TLSKey enable HTTPS when both are set. The pair
		// is reloaded periodically so certificates can rotate without
		// a restart.
		TLSCert string `mapstructure:"tlsCert"`
		TLSKey  string `mapstructure:"tlsKey"`
	} `mapstructure:"listen"`

	// Mode is "prod" or "dev". In dev mode error responses include
	// internal detail, in prod mode they do not.
	Mode string `mapstructure:"mode"`

	// Appdir holds the static web client files.
	Appdir string `mapstructure:"appdir"`

	Extract struct {
		FFprobePath string `mapstructure:"ffprobePath"`
		FFmpegPath  string `mapstructure:"ffmpegPath"`
		// Timeout for a single external tool invocation.
		Timeout time.Duration `mapstructure:"timeout"`
		// Workers is the number of parallel probe/thumbnail workers.
		Workers int `mapstructure:"workers"`
	} `mapstructure:"extract"`

	Thumbnails struct {
		// UploadSizeLimit is the maximum accepted thumbnail upload.
		UploadSizeLimit int `mapstructure:"uploadSizeLimit"`
		// RescaleAbove triggers downscaling of uploaded thumbnails.
		RescaleAbove int `mapstructure:"rescaleAbove"`
	} `mapstructure:"thumbnails"`

	Session struct {
		CookieName string `mapstructure:"cookieName"`
	} `mapstructure:"session"`
}

// Load reads the configuration from an optional config file and the
// environment. A missing config file is not an error, the defaults
// cover a fully working single-index setup.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("indexLocation", ".flux")
	v.SetDefault("listen.address", "0.0.0.0")
	v.SetDefault("listen.port", 8620)
	v.SetDefault("mode", "prod")
	v.SetDefault("extract.ffprobePath", "ffprobe")
	v.SetDefault("extract.ffmpegPath", "ffmpeg")
	v.SetDefault("extract.timeout", 2*time.Minute)
	v.SetDefault("extract.workers", 4)
	v.SetDefault("thumbnails.uploadSizeLimit", 10<<20)
	v.SetDefault("thumbnails.rescaleAbove", 1<<18)
	v.SetDefault("session.cookieName", "fluxSession")

	v.SetEnvPrefix("flux")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DatabasePath returns the path of the database file of the index.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.IndexLocation, DatabaseFile)
}

// ThumbnailPath returns the path of the thumbnail directory of the index.
func (c *Config) ThumbnailPath() string {
	return filepath.Join(c.IndexLocation, ThumbnailDir)
}
