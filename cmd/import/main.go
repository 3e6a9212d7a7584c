package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"access_router/pkg/config"
	"access_router/pkg/graph"
	"access_router/pkg/logging"
	osmparser "access_router/pkg/osm"
	"access_router/pkg/polyline"
	"access_router/pkg/store"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	output := flag.String("output", "polylines.geojson", "Output polyline GeoJSON file path")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 45.50,-73.58,45.51,-73.57)")
	largest := flag.Bool("largest-component", false, "Keep only polylines touching the largest connected component")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	log, err := logging.New(config.LogConfig{Level: *logLevel, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: import --input <file.osm.pbf> [--output polylines.geojson] [--bbox minLat,minLng,maxLat,maxLng] [--largest-component]")
		os.Exit(1)
	}

	// Parse bbox option.
	opts := osmparser.ParseOptions{Logger: log}
	if *bbox != "" {
		var minLat, minLng, maxLat, maxLng float64
		_, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng)
		if err != nil {
			log.Fatal("invalid bbox format (expected minLat,minLng,maxLat,maxLng)", zap.Error(err))
		}
		opts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		log.Info("using bounding box filter",
			zap.Float64("min_lat", minLat), zap.Float64("max_lat", maxLat),
			zap.Float64("min_lng", minLng), zap.Float64("max_lng", maxLng))
	}

	start := time.Now()

	// Step 1: Parse OSM data.
	f, err := os.Open(*input)
	if err != nil {
		log.Fatal("failed to open input file", zap.Error(err))
	}
	defer f.Close()

	res, err := osmparser.Parse(context.Background(), f, opts)
	if err != nil {
		log.Fatal("failed to parse OSM data", zap.Error(err))
	}

	// Step 2: Build the graph to merge junctions and check connectivity.
	g := graph.New()
	if err := polyline.Rehydrate(g, res.Polylines); err != nil {
		log.Fatal("failed to build graph", zap.Error(err))
	}
	log.Info("graph built",
		zap.Int("nodes", g.NumNodes()),
		zap.Int("edges", g.NumEdges()),
		zap.Int("components", g.ComponentCount()),
	)

	// Step 3: Optionally drop polylines outside the largest component.
	if *largest {
		total := g.NumNodes()
		keep := make(map[graph.NodeID]bool)
		for _, id := range g.LargestComponent() {
			keep[id] = true
		}
		for _, pid := range g.Polylines() {
			seq, _ := g.PolylineNodes(pid)
			if len(seq) > 0 && !keep[seq[0]] {
				g.RemovePolyline(pid)
			}
		}
		log.Info("largest component kept",
			zap.Int("polylines", g.NumPolylines()),
			zap.Float64("node_share_pct", float64(len(keep))/float64(max(total, 1))*100),
		)
	}

	// Step 4: Write the store.
	st := store.NewFile(*output)
	if err := st.Save(polyline.ExportAll(g)); err != nil {
		log.Fatal("failed to write output", zap.Error(err))
	}

	info, _ := os.Stat(*output)
	log.Info("done",
		zap.Duration("elapsed", time.Since(start).Round(time.Second)),
		zap.String("output", *output),
		zap.Float64("size_mb", float64(info.Size())/(1024*1024)),
	)
}
