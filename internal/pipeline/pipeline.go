package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/buienradar-exporter/internal/domain"
	"github.com/couchcryptid/buienradar-exporter/internal/observability"
	"github.com/couchcryptid/buienradar-exporter/internal/registry"
	"github.com/jonboulle/clockwork"
)

// PollInterval is the time between feed fetches. KNMI refreshes station data
// every ten minutes.
const PollInterval = 5 * time.Minute

// Source yields the stations of one feed fetch. An upstream failure is an
// empty sequence.
type Source interface {
	Fetch(ctx context.Context) iter.Seq[domain.StationMeasurement]
}

// Sink republishes a cycle's stations.
type Sink interface {
	Name() string
	Publish(ctx context.Context, stations []domain.StationMeasurement) error
}

// Poller orchestrates the fetch-update-sleep loop.
type Poller struct {
	source   Source
	registry *registry.Registry
	sinks    []Sink
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool
}

// New creates a Poller. Sinks are optional.
func New(source Source, reg *registry.Registry, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics, sinks ...Sink) *Poller {
	return &Poller{
		source:   source,
		registry: reg,
		sinks:    sinks,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a cycle has exposed station data.
func (p *Poller) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no station data has been fetched yet")
	}
	return nil
}

// Run polls immediately and then every PollInterval until the context is
// cancelled. It returns an error only when the gauges cannot be registered.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "interval", PollInterval)
	p.metrics.PollerRunning.Set(1)
	defer p.metrics.PollerRunning.Set(0)

	for {
		if err := p.RunCycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping", "reason", ctx.Err())
			return nil
		case <-p.clock.After(PollInterval):
		}
	}
}

// RunCycle performs one fetch and update. Upstream and timestamp problems are
// logged and counted; only registry failures are returned.
func (p *Poller) RunCycle(ctx context.Context) error {
	start := p.clock.Now()

	stations := slices.Collect(p.source.Fetch(ctx))
	p.logger.Info("got data for stations", "stations", len(stations))
	p.metrics.Stations.Set(float64(len(stations)))

	if len(stations) == 0 {
		return nil
	}

	if err := p.registry.EnsureInitialized(); err != nil {
		return fmt.Errorf("initialize gauges: %w", err)
	}

	p.registry.BeginCycle()
	p.updateSunTimes(stations[0])
	for _, s := range stations {
		p.registry.Update(s)
	}
	if pruned := p.registry.EndCycle(); pruned > 0 {
		p.metrics.PrunedSeries.Add(float64(pruned))
		p.logger.Debug("pruned stale series", "series", pruned)
	}

	p.publish(ctx, stations)

	p.ready.Store(true)
	p.metrics.PollDuration.Observe(p.clock.Since(start).Seconds())
	return nil
}

// updateSunTimes sets the feed-wide gauges. An unparseable value leaves the
// previous values in place.
func (p *Poller) updateSunTimes(first domain.StationMeasurement) {
	sunrise, err := domain.ToEpoch(first.Sunrise)
	if err == nil {
		var sunset int64
		sunset, err = domain.ToEpoch(first.Sunset)
		if err == nil {
			p.registry.SetSunTimes(sunrise, sunset)
			p.logger.Debug("sun times", "sunrise", first.Sunrise, "sunset", first.Sunset)
			return
		}
	}
	p.metrics.TimestampErrors.Inc()
	p.logger.Error("skipping sunrise and sunset", "error", err)
}

func (p *Poller) publish(ctx context.Context, stations []domain.StationMeasurement) {
	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, stations); err != nil {
			p.metrics.SinkErrors.WithLabelValues(sink.Name()).Inc()
			p.logger.Warn("publish failed", "sink", sink.Name(), "error", err)
		}
	}
}
