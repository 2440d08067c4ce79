package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"arena/internal/api"
	"arena/internal/config"
	"arena/internal/game"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ARENA - AUTHORITATIVE SERVER")
	log.Println("🎮 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	arenaCfg := appConfig.Arena
	simCfg := appConfig.Sim

	log.Printf("🎮 Config: %d TPS, %.0fx%.0f arena, %d players, %s codec",
		simCfg.TickRate, arenaCfg.Width, arenaCfg.Height, appConfig.Server.MaxPlayers, appConfig.Server.WireCodec)
	log.Printf("🛡️ Resource limits: %d projectiles, %d sockets (%d per IP), %.0f msg/s per socket",
		appConfig.Limits.MaxProjectiles, appConfig.Limits.MaxWSConnectionsTotal,
		appConfig.Limits.MaxWSConnectionsPerIP, appConfig.Limits.InputRate)
	if simCfg.Strict {
		log.Println("⚠️ Strict invariants enabled: violations will panic")
	}

	engine := game.NewEngine(game.EngineConfigFrom(appConfig))
	engine.SetTickObserver(api.RecordTick)

	// Start event log
	if path := appConfig.Observability.EventLogPath; path != "" {
		if err := engine.StartEventLog(path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	// Start debug server
	debugServer := api.StartDebugServer(appConfig.Observability)

	server, err := api.NewServer(engine, appConfig)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Start game engine
	engine.Start()
	log.Println("✅ Game Engine started")

	stopStats := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				api.UpdateEventLogStats(engine.GetEventLogStats())
			case <-stopStats:
				return
			}
		}
	}()

	// Start API server in goroutine
	go func() {
		addr := ":" + strconv.Itoa(appConfig.Server.Port)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ API server shutdown: %v", err)
	}
	if debugServer != nil {
		debugServer.Shutdown(ctx)
	}
	close(stopStats)
	engine.Stop()
	engine.StopEventLog()
	log.Println("👋 Goodbye!")
}
