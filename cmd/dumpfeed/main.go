// Command dumpfeed runs a single poll cycle against a fresh Prometheus
// registry and prints the resulting exposition text. It reads a saved feed
// document when -file is given and the live Buienradar feed otherwise.
//
// Usage:
//
//	go run ./cmd/dumpfeed -file internal/adapter/buienradar/testdata/feed.json
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"time"

	"github.com/couchcryptid/buienradar-exporter/internal/adapter/buienradar"
	"github.com/couchcryptid/buienradar-exporter/internal/config"
	"github.com/couchcryptid/buienradar-exporter/internal/domain"
	"github.com/couchcryptid/buienradar-exporter/internal/observability"
	"github.com/couchcryptid/buienradar-exporter/internal/pipeline"
	"github.com/couchcryptid/buienradar-exporter/internal/registry"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	file := flag.String("file", "", "feed JSON document to read instead of the live feed")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting()

	var source pipeline.Source
	if *file != "" {
		doc, err := readDocument(*file)
		if err != nil {
			return err
		}
		log.Printf("%s: %d stations", *file, doc.Len())
		source = documentSource{doc: doc}
	} else {
		source = buienradar.NewClient(cfg, logger, metrics)
	}

	reg := prometheus.NewRegistry()
	gauges := registry.New(reg, registry.Options{PruneStale: cfg.PruneStaleSeries})
	p := pipeline.New(source, gauges, clockwork.NewRealClock(), logger, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := p.RunCycle(ctx); err != nil {
		return err
	}
	if !gauges.Initialized() {
		return fmt.Errorf("no stations in feed")
	}

	return writeExposition(os.Stdout, reg)
}

// documentSource replays a decoded document on every fetch.
type documentSource struct{ doc *buienradar.Document }

func (s documentSource) Fetch(context.Context) iter.Seq[domain.StationMeasurement] {
	return s.doc.Stations()
}

func readDocument(path string) (*buienradar.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return buienradar.DecodeDocument(f)
}

func writeExposition(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather: %w", err)
	}
	bw := bufio.NewWriter(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(bw, mf); err != nil {
			return fmt.Errorf("write %s: %w", mf.GetName(), err)
		}
	}
	return bw.Flush()
}
