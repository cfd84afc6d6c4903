package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/econsulaire/portal/internal/config"
	"github.com/econsulaire/portal/internal/database"
	"github.com/econsulaire/portal/internal/handlers"
	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/ratelimit"
	"github.com/econsulaire/portal/internal/services/backup"
	"github.com/econsulaire/portal/internal/services/mailer"
	"github.com/econsulaire/portal/internal/services/notifier"
	"github.com/econsulaire/portal/internal/services/pdf"
	"github.com/econsulaire/portal/internal/services/storage"
	"github.com/econsulaire/portal/internal/websocket"
	"github.com/econsulaire/portal/internal/workflow"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (detects embedded vs external automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in the shutdown handler below

	// 3. Auto-migrate schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.User{},
		&models.ConsularUnit{},
		&models.Service{},
		&models.UnitService{},
		&models.Application{},
		&models.StatusHistory{},
		&models.Document{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Wire services
	hub := websocket.NewHub()
	go hub.Run()

	mail := mailer.New(cfg.Email)

	engine := workflow.NewEngine(db.DB, workflow.Config{AllowReopen: cfg.Workflow.AllowReopen})
	engine.SetDocumentGenerator(pdf.NewGenerator(cfg.Uploads.Dir))
	engine.SetEvents(notifier.New(db.DB, mail, hub))

	backups := backup.New(cfg.Database, cfg.Backup.Dir)

	router := handlers.NewRouter(handlers.Deps{
		DB:      db.DB,
		Cfg:     cfg,
		Engine:  engine,
		Storage: storage.New(cfg.Uploads.Dir, cfg.Uploads.MaxSizeByte),
		Backups: backups,
		Mailer:  mail,
		Hub:     hub,
		Logins:  ratelimit.NewMemoryStore(5, 15*time.Minute),
	})

	// 5. Scheduled database backups
	if cfg.Backup.Interval != "" {
		interval, err := time.ParseDuration(cfg.Backup.Interval)
		if err != nil {
			log.Printf("⚠️ Invalid BACKUP_INTERVAL %q: %v", cfg.Backup.Interval, err)
		} else {
			go func() {
				ticker := time.NewTicker(interval)
				for range ticker.C {
					if _, err := backups.Create(); err != nil {
						log.Printf("Backup worker error: %v", err)
					}
				}
			}()
			log.Printf("✅ Backup worker started (every %s)", interval)
		}
	}

	// 6. Start server with graceful shutdown
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		log.Printf("🚀 e-Consulaire API starting on port %s [%s]\n", cfg.Port, cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
