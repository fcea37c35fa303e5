package main

import (
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/jimmy2002916/SimpleBanking/internal/audit"
	"github.com/jimmy2002916/SimpleBanking/internal/cache"
	"github.com/jimmy2002916/SimpleBanking/internal/ledger"
	"github.com/jimmy2002916/SimpleBanking/internal/server"
	"github.com/jimmy2002916/SimpleBanking/internal/storage"
)

func main() {
	// Persistence: PostgreSQL when DATABASE_URL is set, CSV otherwise.
	var store storage.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}

		pg := storage.NewPostgresStore(db)
		if err := pg.Init(); err != nil {
			log.Fatalf("Failed to initialize database schema: %v", err)
		}
		store = pg
	} else {
		store = storage.NewCSVStore(getEnv("ACCOUNTS_FILE", "accounts.csv"))
	}

	// Audit trail: always to the JSON-lines log, additionally to a
	// Redis stream when Redis is configured.
	fileRecorder, err := audit.NewFileRecorder(getEnv("AUDIT_LOG", "transactions.log"))
	if err != nil {
		log.Fatalf("Failed to open audit log: %v", err)
	}
	defer fileRecorder.Close()
	recorders := audit.MultiRecorder{fileRecorder}

	var views *cache.ViewCache[server.AccountView]
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redis, err := cache.NewClient(redisAddr, "", 0)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redis.Close()

		recorders = append(recorders, audit.NewStreamRecorder(redis.Client))
		views = cache.NewViewCache[server.AccountView](redis.Client, 24*time.Hour)
	}

	svc := ledger.NewService(store, recorders)
	if err := svc.Load(); err != nil {
		log.Fatalf("Failed to load ledger state: %v", err)
	}
	log.Printf("Loaded %d account(s)", len(svc.ListAccounts()))

	authHandler := server.NewAuthHandler(
		getEnv("OPERATOR_USER", "operator"),
		os.Getenv("OPERATOR_PASSWORD_HASH"),
	)
	handler := server.NewHandler(svc, views)
	router := server.NewRouter(handler, authHandler)

	// Persist the ledger on shutdown.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		if err := svc.Save(); err != nil {
			log.Printf("Failed to save ledger state: %v", err)
		}
		fileRecorder.Close()
		os.Exit(0)
	}()

	port := getEnv("PORT", "8080")
	log.Printf("SimpleBanking starting on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
