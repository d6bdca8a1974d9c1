package utils

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

func LoadEnv() {
	err := godotenv.Load()
	if err != nil {
		log.Println("ℹ️  No .env file found, continuing...")
	}
}

func GetDatabaseURL() string {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		log.Fatalln("❌ DATABASE_URL not set (in .env or environment)")
	}
	return url
}

// FindSchemaFile returns the first schema file that exists out of the
// conventional names, or the empty string when none is present.
func FindSchemaFile() string {
	for _, name := range []string{"schema.yaml", "schema.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
