package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rpattn/spanql/internal/db"
	"github.com/rpattn/spanql/internal/spans"
	"github.com/spf13/viper"
)

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// ExportTimeout replaces WriteTimeout for export downloads
	ExportTimeout time.Duration
}

// LogConfig selects the log level and format
type LogConfig struct {
	Level  string
	Format string
}

// Config is the full service configuration
type Config struct {
	Database   db.Config
	Server     ServerConfig
	Pagination spans.Config
	Log        LogConfig
}

// Default returns the configuration used when nothing is overridden
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"http://localhost:3000"},
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			ExportTimeout:   5 * time.Minute,
		},
		Pagination: spans.DefaultConfig(),
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads config.yaml from configPath when present and applies SPANQL_*
// environment overrides, e.g. SPANQL_DATABASE_HOST or SPANQL_SERVER_ADDR.
func Load(configPath string) (Config, error) {
	// Start with default
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("SPANQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found? Use defaults + env
		slog.Info("no config.yaml found, using defaults and env vars", "path", configPath)
	} else {
		slog.Info("loaded config", "file", v.ConfigFileUsed())
	}

	cfg.Database = db.Config{
		Host:     v.GetString("database.host"),
		Port:     v.GetInt("database.port"),
		User:     v.GetString("database.user"),
		Password: v.GetString("database.password"),
		DBName:   v.GetString("database.dbname"),
		SSLMode:  v.GetString("database.sslmode"),
		MaxConns: v.GetInt32("database.maxconns"),
	}
	cfg.Server = ServerConfig{
		Addr:            v.GetString("server.addr"),
		AllowedOrigins:  v.GetStringSlice("server.allowedorigins"),
		ReadTimeout:     v.GetDuration("server.readtimeout"),
		WriteTimeout:    v.GetDuration("server.writetimeout"),
		IdleTimeout:     v.GetDuration("server.idletimeout"),
		ShutdownTimeout: v.GetDuration("server.shutdowntimeout"),
		ExportTimeout:   v.GetDuration("server.exporttimeout"),
	}
	cfg.Pagination = spans.Config{
		DefaultPageSize: v.GetInt("pagination.defaultpagesize"),
		MaxPageSize:     v.GetInt("pagination.maxpagesize"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	if cfg.Pagination.DefaultPageSize <= 0 || cfg.Pagination.MaxPageSize < cfg.Pagination.DefaultPageSize {
		return Config{}, fmt.Errorf("invalid pagination config: default page size %d, max page size %d",
			cfg.Pagination.DefaultPageSize, cfg.Pagination.MaxPageSize)
	}

	return cfg, nil
}

// Defaults are registered per key so AutomaticEnv can resolve nested keys.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.maxconns", cfg.Database.MaxConns)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowedorigins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.readtimeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.writetimeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idletimeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.shutdowntimeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.exporttimeout", cfg.Server.ExportTimeout)

	v.SetDefault("pagination.defaultpagesize", cfg.Pagination.DefaultPageSize)
	v.SetDefault("pagination.maxpagesize", cfg.Pagination.MaxPageSize)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// ParseLogLevel maps a configured level name to a slog level
func ParseLogLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}
