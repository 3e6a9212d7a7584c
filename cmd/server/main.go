package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"access_router/pkg/api"
	"access_router/pkg/config"
	"access_router/pkg/editor"
	"access_router/pkg/graph"
	"access_router/pkg/logging"
	"access_router/pkg/metrics"
	"access_router/pkg/polyline"
	"access_router/pkg/routing"
	"access_router/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	dataFile := flag.String("data", "", "Path to polyline GeoJSON store (overrides config)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin (overrides config)")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *dataFile != "" {
		cfg.DataFile = *dataFile
	}
	if *port != 0 {
		cfg.Server.Addr = fmt.Sprintf(":%d", *port)
	}
	if *corsOrigin != "" {
		cfg.Server.CORSOrigin = *corsOrigin
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	start := time.Now()

	// Load polylines and rebuild the graph.
	st := store.NewFile(cfg.DataFile)
	log.Info("loading polylines", zap.String("path", st.Path()))
	ps, err := st.Load()
	if err != nil {
		log.Fatal("failed to load polylines", zap.Error(err))
	}

	g := graph.New(graph.WithMergeTolerance(cfg.Graph.MergeToleranceMeters))
	if err := polyline.Rehydrate(g, ps); err != nil {
		log.Fatal("failed to rebuild graph", zap.Error(err))
	}
	log.Info("graph loaded",
		zap.Int("polylines", g.NumPolylines()),
		zap.Int("nodes", g.NumNodes()),
		zap.Int("edges", g.NumEdges()),
		zap.Int("components", g.ComponentCount()),
	)

	session := editor.NewSession(g, editor.NewWebMercator(cfg.Editor.Zoom, graph.LatLng{}), cfg.Editor.SnapThresholdPixels)
	engine := routing.NewEngine(g, cfg.Graph.MaxSnapMeters)
	collector := metrics.NewCollector()

	handlers := api.NewHandlers(session, engine,
		api.WithStore(st),
		api.WithMetrics(collector),
		api.WithLogger(log),
		api.WithDefaultPolicy(cfg.Routing.Policy()),
		api.WithSnapping(cfg.Graph.MaxSnapMeters, cfg.Editor.SnapThresholdPixels, cfg.Editor.Zoom),
	)

	log.Info("ready", zap.Duration("startup", time.Since(start).Round(time.Millisecond)))

	srv := api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxConcurrent:  cfg.Server.MaxConcurrent,
		CORSOrigin:     cfg.Server.CORSOrigin,
	}, handlers, log, collector.Handler())

	if err := api.ListenAndServe(srv, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
