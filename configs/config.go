package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string
	RedisHost  string
	RedisPort  int
	JWTSecret  string
	TokenTTL   time.Duration
	Port       int
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	return Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBNameTest: os.Getenv("DB_NAME_TEST"),
		RedisHost:  os.Getenv("REDIS_HOST"),
		RedisPort:  getEnvInt("REDIS_PORT", 6379),
		JWTSecret:  jwtSecret(),
		TokenTTL:   getEnvDuration("JWT_EXPIRES", 24*time.Hour),
		Port:       getEnvInt("PORT", 4000),
	}
}

// jwtSecret refuses to start on a missing signing secret; a fallback would
// mean every deployment that forgot the variable signs with the same
// well-known key. Tests get a fixed secret instead.
func jwtSecret() string {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return secret
	}
	if os.Getenv("GO_ENV") == "test" {
		return "test-secret"
	}
	log.Fatal("JWT_SECRET is not set")
	return ""
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return value
}
