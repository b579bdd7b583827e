package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/yegors/mission-planner/internal/api"
	"github.com/yegors/mission-planner/internal/config"
	"github.com/yegors/mission-planner/internal/planner"
	"github.com/yegors/mission-planner/internal/storage/sqlite"
	"github.com/yegors/mission-planner/internal/waypoints"
	"github.com/yegors/mission-planner/internal/websocket"
	"github.com/yegors/mission-planner/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting mission planner",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	frame, err := cfg.GeoFrame()
	if err != nil {
		log.Error("Invalid frame origin", logger.Error(err))
		os.Exit(1)
	}

	// Create SQLite storage for the export history
	dbPath := cfg.Storage.SQLitePath
	if dbPath != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbPath))
			os.Exit(1)
		}
	}
	db, err := sqlite.Open(dbPath, log)
	if err != nil {
		log.Error("Failed to open SQLite database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	exportStorage, err := sqlite.NewExportStorage(db, log)
	if err != nil {
		log.Error("Failed to create export storage", logger.Error(err))
		os.Exit(1)
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()

	// Create planner service
	plannerService := planner.NewService(planner.Config{
		Frame:           frame,
		Params:          cfg.StatsParams(),
		DefaultAltitude: cfg.Flight.DefaultAltitude,
		MissionName:     cfg.Export.MissionName,
	}, log)
	plannerService.SetBroadcaster(wsServer)
	plannerService.SetExportRecorder(exportStorage)

	// Uploaded waypoint lists are pushed to every client
	waypointStore := waypoints.NewStore(log)
	stopForwarding := wsServer.ForwardWaypoints(waypointStore)

	// Each client drags against the shared mission
	wsServer.SetMessageHandler(websocket.NewDragHandler(plannerService, log))

	// Create API router
	router := api.NewRouter(plannerService, waypointStore, exportStorage, cfg, log, wsServer)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}
	if len(cfg.Server.AdditionalPorts) > 0 {
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	handler := router.Routes()
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	stopForwarding()
	waypointStore.Close()

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			log.Info("Attempting to shutdown HTTP server", logger.String("addr", srv.Addr))
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait()

	log.Info("All HTTP servers shutdown.")

	log.Info("Server fully stopped")
}
