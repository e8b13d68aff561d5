// Command hivemindd is the hivemind server: it wires the engine to an
// HTTP/WebSocket listener, restores and periodically snapshots state,
// and optionally replicates every mutation to a NATS sink. Ground:
// cmd/cliairmonitor/main.go's flag parsing, config loading with a
// stat-then-load fallback to defaults, embedded NATS server startup,
// and signal-driven graceful shutdown sequence.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/hivemindhq/hivemind/internal/config"
	"github.com/hivemindhq/hivemind/internal/embedding"
	"github.com/hivemindhq/hivemind/internal/engine"
	"github.com/hivemindhq/hivemind/internal/extraction"
	"github.com/hivemindhq/hivemind/internal/logging"
	"github.com/hivemindhq/hivemind/internal/replication"
	"github.com/hivemindhq/hivemind/internal/snapshot"

	"github.com/hivemindhq/hivemind/internal/api"
)

var log = logging.WithComponent("MAIN")

func main() {
	configPath := flag.String("config", "configs/hivemind.yaml", "Path to configuration file")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	flag.Parse()

	log.Info("===============================================")
	log.Info("  hivemind - shared agent memory service")
	log.Info("===============================================")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	log.Infof("listen address: %s", cfg.Server.ListenAddr)
	log.Infof("snapshot data dir: %s (every %s)", cfg.Snapshot.DataDir, cfg.Snapshot.Interval)

	var embeddingProvider embedding.Provider
	switch cfg.Embedding.Provider {
	case "local":
		embeddingProvider = embedding.NewLocalProvider(cfg.Embedding.BaseURL, cfg.Embedding.Model)
		log.Infof("embedding provider: local at %s", cfg.Embedding.BaseURL)
	case "remote":
		embeddingProvider = embedding.NewRemoteProvider(cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.APIKey)
		log.Infof("embedding provider: remote at %s", cfg.Embedding.BaseURL)
	default:
		log.Info("embedding provider: disabled")
	}

	var extractionProvider extraction.Provider
	if cfg.Extraction.Provider != "" {
		extractionProvider = extraction.NewHTTPProvider(cfg.Extraction.BaseURL, cfg.Extraction.Model, cfg.Extraction.APIKey)
		log.Infof("extraction provider: %s at %s", cfg.Extraction.Provider, cfg.Extraction.BaseURL)
	} else {
		log.Info("extraction provider: disabled")
	}

	// Optionally start an embedded NATS server so replication has a
	// local sink to talk to without standing up an external broker.
	if cfg.DevNATS.Enabled {
		natsOpts := &natsserver.Options{
			Port:     cfg.DevNATS.Port,
			HTTPPort: -1,
			NoLog:    true,
			NoSigs:   true,
		}
		devServer, err := natsserver.NewServer(natsOpts)
		if err != nil {
			log.Fatalf("failed to create embedded NATS server: %v", err)
		}
		go devServer.Start()
		if !devServer.ReadyForConnections(5 * time.Second) {
			log.Fatalf("embedded NATS server failed to start in time")
		}
		log.Infof("embedded NATS dev server started on port %d", cfg.DevNATS.Port)
		defer devServer.Shutdown()
	}

	var replicator *replication.Emitter
	var replicationStop chan struct{}
	if cfg.Replication.Enabled {
		replicator = replication.NewEmitter(cfg.Replication.SinkURL, "hivemind.replication")
		replicationStop = make(chan struct{})
		go replicator.Run(replicationStop)
		log.Infof("replication enabled, sink %s", cfg.Replication.SinkURL)
	}

	eng := engine.New(engine.Config{
		EmbeddingProvider:  embeddingProvider,
		ExtractionProvider: extractionProvider,
		Replicator:         replicator,
	})

	snapMgr := snapshot.NewManager(cfg.Snapshot.DataDir, cfg.Snapshot.Interval, eng, eng)
	if err := snapMgr.Load(); err != nil {
		log.Fatalf("failed to load snapshot: %v", err)
	}

	snapshotStop := make(chan struct{})
	go snapMgr.Run(snapshotStop)

	server := api.NewServer(eng)
	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server.Handler(),
	}

	go func() {
		log.Infof("HTTP/WS server starting on %s", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	log.Info("===============================================")
	log.Infof("  hivemind ready at %s", cfg.Server.ListenAddr)
	log.Info("===============================================")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(snapshotStop)
	if replicationStop != nil {
		close(replicationStop)
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}

	fmt.Println()
	log.Info("hivemind shutdown complete")
}
