package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/fieldlens/reporting/internal/db"
	"github.com/fieldlens/reporting/internal/optimizer"
)

// Config is the full server configuration.
type Config struct {
	Database   db.Config
	ListenAddr string
	Origins    []string
	CacheTTL   time.Duration
	Partitions []optimizer.PartitionedTable
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := Config{
		Database:   db.DefaultConfig(),
		ListenAddr: ":8080",
		Origins:    []string{"http://localhost:3000"},
		CacheTTL:   5 * time.Minute,
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()          // allow environment overrides
	v.SetEnvPrefix("REPORTS") // map env vars like REPORTS_DATABASE.HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.ListenAddr = v.GetString("server.addr")
	}
	if v.IsSet("server.origins") {
		cfg.Origins = v.GetStringSlice("server.origins")
	}
	if v.IsSet("cache.ttl") {
		cfg.CacheTTL = v.GetDuration("cache.ttl")
	}

	// Partition catalog: logical table → partitioned counterpart and its
	// key columns. Falls back to the built-in observation catalog.
	if v.IsSet("partitions") {
		var entries []optimizer.PartitionedTable
		if err := v.UnmarshalKey("partitions", &entries); err != nil {
			return Config{}, fmt.Errorf("invalid partitions config: %w", err)
		}
		cfg.Partitions = entries
	}

	return cfg, nil
}

// Catalog builds the partition catalog from the configured entries, or the
// default observation catalog when none are configured.
func (c Config) Catalog() *optimizer.Catalog {
	if len(c.Partitions) == 0 {
		return optimizer.DefaultCatalog()
	}
	return optimizer.NewCatalog(c.Partitions...)
}
