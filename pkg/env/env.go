// Package env loads process environment from an optional .env file.
package env

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Load reads .env into the process environment when one is present.
func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system envs")
	}
}

// Get returns the value of key, or fallback when the variable is unset.
func Get(key string, fallback string) string {
	if value, exist := os.LookupEnv(key); exist {
		return value
	}
	return fallback
}
