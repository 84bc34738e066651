package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Chart     ChartConfig     `mapstructure:"chart"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// GeneratorConfig points at the remote chart image service.
type GeneratorConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Mode is "json" (metadata object), "image" (raw bitmap) or "auto".
	Mode string `mapstructure:"mode"`
	// Timeout of zero leaves requests without a deadline.
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	MaxBytes  int64         `mapstructure:"max_bytes"`
}

type ChartConfig struct {
	Surveys       []string `mapstructure:"surveys"`
	DefaultSurvey string   `mapstructure:"default_survey"`
	MinFieldSize  float64  `mapstructure:"min_field_size"`
	MaxFieldSize  float64  `mapstructure:"max_field_size"`
	LoadingIcon   string   `mapstructure:"loading_icon"`
	FailedIcon    string   `mapstructure:"failed_icon"`
}

type ArchiveConfig struct {
	FileName      string `mapstructure:"file_name"`
	IncludeSurvey bool   `mapstructure:"include_survey"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type StorageConfig struct {
	Type           string        `mapstructure:"type"`
	DataDir        string        `mapstructure:"data_dir"`
	CacheSize      int           `mapstructure:"cache_size"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
}

var cfg *Config

// DefaultSurveys are the DSS plates the image service understands.
var DefaultSurveys = []string{
	"poss2ukstu_red", "poss2ukstu_ir", "poss2ukstu_blue", "poss1_blue",
	"poss1_red", "quickv", "phase2_gsc2", "phase2_gsc1",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("generator.base_url", "http://localhost:5000/generate")
	v.SetDefault("generator.mode", "auto")
	v.SetDefault("generator.timeout", 0)
	v.SetDefault("generator.user_agent", "findingchart/1.0")
	v.SetDefault("generator.max_bytes", 16<<20)

	v.SetDefault("chart.surveys", DefaultSurveys)
	v.SetDefault("chart.default_survey", DefaultSurveys[0])
	v.SetDefault("chart.min_field_size", 2.0)
	v.SetDefault("chart.max_field_size", 60.0)

	v.SetDefault("archive.file_name", "charts.zip")
	v.SetDefault("archive.include_survey", true)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition"})
	v.SetDefault("cors.max_age", 43200)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cleanup_interval", time.Hour)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_size", 32)
	v.SetDefault("storage.backup_interval", 0)
}

// Load reads the YAML file at configPath. An empty path uses defaults and
// environment variables only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FINDINGCHART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}

	cfg = c
	return cfg, nil
}

func Get() *Config {
	return cfg
}
