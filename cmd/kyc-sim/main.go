// ==============================================================================
// BACKEND SIMULATOR SERVICE - cmd/kyc-sim/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kycflow/internal/sim"
	"kycflow/pkg/config"
	"kycflow/pkg/logger"
)

func main() {
	// Load .env if present
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("kyc-sim")

	if err := cfg.ValidateSim(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	server := sim.NewServer(sim.Options{
		JWTSecret: cfg.Sim.JWTSecret,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Sim.Host, cfg.Sim.Port),
		Handler:      server,
		ReadTimeout:  cfg.Sim.ReadTimeout,
		WriteTimeout: cfg.Sim.WriteTimeout,
		IdleTimeout:  cfg.Sim.IdleTimeout,
	}

	go func() {
		log.Info("KYC backend simulator starting", map[string]interface{}{"port": cfg.Sim.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Server stopped", nil)
}
