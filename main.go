package main

import (
	"context"
	"log"
	"net/http"
	"path/filepath"

	"mail-dispatcher/config"
	"mail-dispatcher/database"
	"mail-dispatcher/handlers"
	"mail-dispatcher/services"
	"mail-dispatcher/storage"

	"github.com/gorilla/mux"
)

func main() {
	// Load configuration from .env
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Initialize database connection
	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	// Apply database migrations
	migrationsPath := filepath.Join(".", "database", "migrations")
	if err := database.ApplyMigrations(cfg.DatabaseURL, migrationsPath); err != nil {
		log.Fatalf("Error applying database migrations: %v", err)
	}
	log.Println("Database migrations applied successfully.")

	// Construct collaborators owned by the dispatcher
	store, err := storage.NewS3Store(context.Background(), storage.S3Config{
		Bucket:      cfg.BucketName,
		Region:      cfg.AWSRegion,
		AccessKeyID: cfg.AWSAccessKeyID,
		SecretKey:   cfg.AWSSecretKey,
	})
	if err != nil {
		log.Fatalf("Error initializing object storage: %v", err)
	}

	sender, err := services.NewSMTPSender(cfg)
	if err != nil {
		log.Fatalf("Error initializing SMTP sender: %v", err)
	}

	records := database.NewRecordStore(db)
	files := database.NewFileStore(db)
	dispatcher := services.NewDispatcher(store, sender, records, cfg.DispatchConcurrency)

	// Set up router
	r := mux.NewRouter()

	// API Routes
	r.HandleFunc("/api/dispatch", handlers.DispatchHandler(dispatcher)).Methods("POST")
	r.HandleFunc("/api/files", handlers.ListFilesHandler(files)).Methods("GET")
	r.HandleFunc("/api/files", handlers.UploadFileHandler(store, files)).Methods("POST")
	r.HandleFunc("/api/runs/{run_id}/records", handlers.GetRunRecordsHandler(records)).Methods("GET")
	r.HandleFunc("/api/stats", handlers.GetStatsHandler(db)).Methods("GET")
	r.HandleFunc("/api/stats/daily", handlers.GetDailySendsHandler(db)).Methods("GET")

	// Start server
	log.Printf("Server starting on port %s...", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
