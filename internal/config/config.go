package config

import (
	"fmt"
	"os"
	"strconv"

	"mmr-engine/internal/engine"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	DBPath     string
	ServerPort string
	LogLevel   string
	Rating     engine.RatingConfig
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	rating := engine.DefaultRatingConfig()
	var err error
	if rating.Initial, err = getEnvFloat("INITIAL_RATING", rating.Initial); err != nil {
		return nil, err
	}
	if rating.K, err = getEnvFloat("K_FACTOR", rating.K); err != nil {
		return nil, err
	}
	if rating.TitleK, err = getEnvFloat("TITLE_K_FACTOR", rating.K); err != nil {
		return nil, err
	}
	if rating.ResetCarryover, err = getEnvFloat("RESET_CARRYOVER", rating.ResetCarryover); err != nil {
		return nil, err
	}
	if rating.K <= 0 || rating.TitleK <= 0 {
		return nil, fmt.Errorf("K_FACTOR and TITLE_K_FACTOR must be positive")
	}
	if rating.ResetCarryover < 0 || rating.ResetCarryover > 1 {
		return nil, fmt.Errorf("RESET_CARRYOVER must be within [0,1]")
	}

	cfg := &Config{
		DBPath:     getEnv("DB_PATH", "mmr.db"),
		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Rating:     rating,
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Float64("initial_rating", rating.Initial).
		Float64("k_factor", rating.K).
		Float64("title_k_factor", rating.TitleK).
		Float64("reset_carryover", rating.ResetCarryover).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be numeric: %w", key, err)
	}
	return f, nil
}

var Module = fx.Provide(Load)
