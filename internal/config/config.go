package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	Index  IndexConfig  `yaml:"index" mapstructure:"index"`
	Roster RosterConfig `yaml:"roster" mapstructure:"roster"`
	Match  MatchConfig  `yaml:"match" mapstructure:"match"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend holding the registry table.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// SourceConfig configures the bulk registry file and how it is chunked.
type SourceConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	ChunkSize  int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	NameColumn string `yaml:"name_column" mapstructure:"name_column"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
	Delimiter  string `yaml:"delimiter" mapstructure:"delimiter"`
}

// IndexConfig configures materialization of the normalized name column.
type IndexConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// RosterConfig configures the roster joined against the registry.
type RosterConfig struct {
	Path       string `yaml:"path" mapstructure:"path"`
	NameColumn string `yaml:"name_column" mapstructure:"name_column"`
	Sheet      string `yaml:"sheet" mapstructure:"sheet"`
	Encoding   string `yaml:"encoding" mapstructure:"encoding"`
}

// MatchConfig configures key building and candidate selection.
type MatchConfig struct {
	Suffixes    []string `yaml:"suffixes" mapstructure:"suffixes"`
	Stopwords   []string `yaml:"stopwords" mapstructure:"stopwords"`
	TieBreak    string   `yaml:"tie_break" mapstructure:"tie_break"`
	FrontColumn string   `yaml:"front_column" mapstructure:"front_column"`
}

// OutputConfig configures the joined output file.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FetchConfig configures remote source downloads.
type FetchConfig struct {
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CORPMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "corpmatch.db")
	v.SetDefault("store.table", "activeCo")
	v.SetDefault("source.chunk_size", 100000)
	v.SetDefault("source.name_column", "CurrentEntityName")
	v.SetDefault("source.delimiter", ",")
	v.SetDefault("index.batch_size", 50000)
	v.SetDefault("roster.name_column", "Vendor_Formal_Name")
	v.SetDefault("match.suffixes", []string{"LLC", "CORP", "INC", "CORPORATION", "PLLC", "PC", "LLP", "CO", "COMPANY", "LTD"})
	v.SetDefault("match.stopwords", []string{"and", "or", "the", "of"})
	v.SetDefault("match.tie_break", "first")
	v.SetDefault("match.front_column", "CurrentEntityName")
	v.SetDefault("output.path", "MyJoinedData.csv")
	v.SetDefault("fetch.temp_dir", "/tmp/corpmatch")
	v.SetDefault("fetch.user_agent", "corpmatch/1.0")
	v.SetDefault("fetch.timeout_secs", 1800)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it touches any data.
// Mode is one of "load", "index", "match" or "run"; all problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "load", "index", "match", "run":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	if c.Store.Table == "" {
		errs = append(errs, "store.table is required")
	}

	if mode == "load" || mode == "run" {
		if c.Source.Path == "" {
			errs = append(errs, "source.path is required")
		}
		if c.Source.ChunkSize <= 0 {
			errs = append(errs, "source.chunk_size must be > 0")
		}
		if c.Source.NameColumn == "" {
			errs = append(errs, "source.name_column is required")
		}
		if utf8.RuneCountInString(c.Source.Delimiter) > 1 {
			errs = append(errs, fmt.Sprintf("source.delimiter %q must be a single character", c.Source.Delimiter))
		}
	}

	if mode == "index" || mode == "run" {
		if c.Index.BatchSize <= 0 {
			errs = append(errs, "index.batch_size must be > 0")
		}
	}

	if mode == "match" || mode == "run" {
		if c.Roster.Path == "" {
			errs = append(errs, "roster.path is required")
		}
		if c.Roster.NameColumn == "" {
			errs = append(errs, "roster.name_column is required")
		}
		if c.Output.Path == "" {
			errs = append(errs, "output.path is required")
		}
		switch c.Match.TieBreak {
		case "first", "shortest":
		default:
			errs = append(errs, fmt.Sprintf("match.tie_break %q must be first or shortest", c.Match.TieBreak))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DelimiterRune returns the source delimiter as a rune, 0 meaning the CSV default.
func (s SourceConfig) DelimiterRune() rune {
	for _, r := range s.Delimiter {
		return r
	}
	return 0
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
