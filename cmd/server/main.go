package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/sosbx/planidocs-exchange/config"
	"github.com/sosbx/planidocs-exchange/pkg/auth"
	"github.com/sosbx/planidocs-exchange/pkg/database"
	"github.com/sosbx/planidocs-exchange/pkg/handlers"
	"github.com/sosbx/planidocs-exchange/pkg/store"
)

func main() {
	// Load .env if it exists
	// Try root and parent directories for flexibility
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, p := range envPaths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			break
		}
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("could not load config %s: %v", cfgPath, err)
	}

	db := database.InitDB(cfg.Database)
	_ = auth.EnsureAdminExists(db)

	s := store.New(db)
	s.SetSubmissionWindow(cfg.Exchange.SubmissionWindow)
	h := &handlers.Handler{Store: s}

	r := handlers.NewRouter(h, cfg)

	port := os.Getenv("PORT")
	if port == "" {
		port = fmt.Sprintf("%d", cfg.Server.Port)
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("could not run server: %v", err)
		}
	}()

	// Block until interrupted, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
