package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. ACBIND_STORAGE_TYPE
const EnvPrefix = "ACBIND"

// Config holds all configuration settings
type Config struct {
	// Storage configuration
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Binding generation
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`

	// Struct layout target
	Layout LayoutConfig `yaml:"layout" mapstructure:"layout"`

	// Documentation comments
	Comments CommentsConfig `yaml:"comments" mapstructure:"comments"`

	// Logging
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

type StorageConfig struct {
	Type        string `yaml:"type" mapstructure:"type"` // "sqlite", "postgres"
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

type GenerationConfig struct {
	RootNamespace      string `yaml:"root_namespace" mapstructure:"root_namespace"`
	OutputDir          string `yaml:"output_dir" mapstructure:"output_dir"`
	Workers            int    `yaml:"workers" mapstructure:"workers"`
	RulesFile          string `yaml:"rules_file" mapstructure:"rules_file"`
	EmitSourceComments bool   `yaml:"emit_source_comments" mapstructure:"emit_source_comments"`
}

type LayoutConfig struct {
	PointerSize int `yaml:"pointer_size" mapstructure:"pointer_size"`
	MaxPack     int `yaml:"max_pack" mapstructure:"max_pack"` // largest alignment honoured
}

type CommentsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"` // bbolt file; empty disables caching
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // debug, info, warn, error
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Storage: StorageConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, ".acbind", "acbind.db"),
		},
		Generation: GenerationConfig{
			RootNamespace: "AC",
			OutputDir:     "generated",
			Workers:       4,
		},
		Layout: LayoutConfig{
			PointerSize: 4,
			MaxPack:     8,
		},
		Comments: CommentsConfig{
			Enabled:   true,
			CachePath: filepath.Join(homeDir, ".acbind", "comments.cache"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// setDefaults registers every leaf key so that environment overrides apply
// even when no config file sets the key
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.sqlite_path", cfg.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", cfg.Storage.PostgresDSN)

	v.SetDefault("generation.root_namespace", cfg.Generation.RootNamespace)
	v.SetDefault("generation.output_dir", cfg.Generation.OutputDir)
	v.SetDefault("generation.workers", cfg.Generation.Workers)
	v.SetDefault("generation.rules_file", cfg.Generation.RulesFile)
	v.SetDefault("generation.emit_source_comments", cfg.Generation.EmitSourceComments)

	v.SetDefault("layout.pointer_size", cfg.Layout.PointerSize)
	v.SetDefault("layout.max_pack", cfg.Layout.MaxPack)

	v.SetDefault("comments.enabled", cfg.Comments.Enabled)
	v.SetDefault("comments.cache_path", cfg.Comments.CachePath)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.json", cfg.Logging.JSON)
}

// Load loads configuration from file. An empty path searches .acbind/, the
// working directory and ~/.acbind for config.yaml; a missing file is fine.
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	setDefaults(v, cfg)

	// ACBIND_STORAGE_TYPE -> storage.type
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".acbind")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".acbind"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to read config").
				WithContext("path", path)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, errors.SeverityCritical, "failed to unmarshal config")
	}

	cfg.Storage.SQLitePath = expandPath(cfg.Storage.SQLitePath)
	cfg.Comments.CachePath = expandPath(cfg.Comments.CachePath)
	cfg.Generation.OutputDir = expandPath(cfg.Generation.OutputDir)
	cfg.Generation.RulesFile = expandPath(cfg.Generation.RulesFile)
	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence. godotenv never
// overrides a variable that is already set, so earlier files win.
func loadEnvFiles() {
	for _, file := range []string{".env.local", ".env"} {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".acbind", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	// AllSettings, which WriteConfigAs writes, includes defaults
	setDefaults(v, c)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.FileSystemErrorf(err, "failed to create config directory %s", dir)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return errors.FileSystemErrorf(err, "failed to write config %s", path)
	}

	return nil
}
