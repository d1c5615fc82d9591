package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configurations
type Config struct {
	DatabaseURL         string
	MailHub             string // SMTP relay in host:port form
	AuthUser            string
	AuthPass            string
	FromEmail           string // source address for outgoing mail
	SkipTLSVerify       bool
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretKey        string
	BucketName          string // S3 bucket holding templates and spreadsheets
	DispatchConcurrency int    // rows dispatched in flight; 1 means strictly sequential
	Port                string
}

// LoadConfig reads configuration from .env file
func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using environment variables directly.")
	}

	concurrencyStr := os.Getenv("DISPATCH_CONCURRENCY")
	concurrency, err := strconv.Atoi(concurrencyStr)
	if err != nil || concurrency < 1 {
		concurrency = 1
		if concurrencyStr != "" {
			log.Printf("DISPATCH_CONCURRENCY invalid, defaulting to %d", concurrency)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MailHub:             os.Getenv("MAILHUB"),
		AuthUser:            os.Getenv("AUTHUSER"),
		AuthPass:            os.Getenv("AUTHPASS"),
		FromEmail:           os.Getenv("FROM_EMAIL"),
		SkipTLSVerify:       os.Getenv("SKIP_TLS_VERIFY") == "YES",
		AWSRegion:           os.Getenv("AWS_REGION"),
		AWSAccessKeyID:      os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:        os.Getenv("AWS_SECRET_ACCESS_KEY"),
		BucketName:          os.Getenv("BUCKET_NAME"),
		DispatchConcurrency: concurrency,
		Port:                port,
	}, nil
}
