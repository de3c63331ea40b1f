package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr         string
	DBPath       string
	SecretKey    string
	Password     string
	PasswordHash string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using environment variables: %v", err)
	}

	return &Config{
		Addr:         getEnv("ADDR", ":8000"),
		DBPath:       getEnv("DB_PATH", "data/ledger.db"),
		SecretKey:    getEnv("SECRET_KEY", "change-this-in-production"),
		Password:     getEnv("APP_PASSWORD", "P@ssw0rd"),
		PasswordHash: getEnv("APP_PASSWORD_HASH", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
