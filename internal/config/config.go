package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddress string
	Database      DatabaseConfig
	Matching      MatchingConfig
	Agent         AgentConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// MatchingConfig carries the classification thresholds. They are
// configuration, not literals scattered through the engine.
type MatchingConfig struct {
	AutoApplyThreshold int
	ReviewFloor        int
	AmbiguityBand      int
	CloseMargin        int
	DueGraceDays       int
	AmountTolerancePct float64
}

type AgentConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDRESS", ":8080")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "backoffice")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("MATCH_AUTO_APPLY_THRESHOLD", 80)
	v.SetDefault("MATCH_REVIEW_FLOOR", 20)
	v.SetDefault("MATCH_AMBIGUITY_BAND", 85)
	v.SetDefault("MATCH_CLOSE_MARGIN", 10)
	v.SetDefault("MATCH_DUE_GRACE_DAYS", 7)
	v.SetDefault("MATCH_AMOUNT_TOLERANCE_PCT", 1.0)

	v.SetDefault("AGENT_BASE_URL", "")
	v.SetDefault("AGENT_TIMEOUT_SECONDS", 8)
	v.SetDefault("AGENT_MAX_ATTEMPTS", 3)

	// A missing .env is fine; env vars still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Matching: MatchingConfig{
			AutoApplyThreshold: v.GetInt("MATCH_AUTO_APPLY_THRESHOLD"),
			ReviewFloor:        v.GetInt("MATCH_REVIEW_FLOOR"),
			AmbiguityBand:      v.GetInt("MATCH_AMBIGUITY_BAND"),
			CloseMargin:        v.GetInt("MATCH_CLOSE_MARGIN"),
			DueGraceDays:       v.GetInt("MATCH_DUE_GRACE_DAYS"),
			AmountTolerancePct: v.GetFloat64("MATCH_AMOUNT_TOLERANCE_PCT"),
		},
		Agent: AgentConfig{
			BaseURL:     v.GetString("AGENT_BASE_URL"),
			Timeout:     time.Duration(v.GetInt("AGENT_TIMEOUT_SECONDS")) * time.Second,
			MaxAttempts: v.GetInt("AGENT_MAX_ATTEMPTS"),
		},
	}

	return cfg, nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
