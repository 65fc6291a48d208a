package shared

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	DirectoryBase string
	DirectoryRPS  int

	SeedWorkers int
	SeedUsers   int
	SeedReviews int

	CacheTTL       time.Duration
	MinBathroomAvg float64
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	atof := func(k string, def float64) float64 {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
		return def
	}
	return Config{
		AppEnv:         env("APP_ENV", "prod"),
		HTTPAddr:       env("HTTP_ADDR", ":8080"),
		MetricsAddr:    env("METRICS_ADDR", ":9100"),
		MySQLDSN:       env("MYSQL_DSN", "root:root@tcp(localhost:3306)/amenities?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:      env("REDIS_ADDR", "localhost:6379"),
		RedisDB:        atoi("REDIS_DB", 0),
		RedisPass:      env("REDIS_PASSWORD", ""),
		DirectoryBase:  env("DIRECTORY_BASE_URL", "https://directory.campus.example.edu/v1"),
		DirectoryRPS:   atoi("DIRECTORY_RPS", 5),
		SeedWorkers:    atoi("SEED_WORKERS", 8),
		SeedUsers:      atoi("SEED_USERS", 100),
		SeedReviews:    atoi("SEED_REVIEWS", 1000),
		CacheTTL:       time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		MinBathroomAvg: atof("LEADERBOARD_MIN_BATHROOM_AVG", 3.0),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
