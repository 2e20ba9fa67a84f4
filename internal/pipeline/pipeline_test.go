package pipeline_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/buienradar-exporter/internal/domain"
	"github.com/couchcryptid/buienradar-exporter/internal/observability"
	"github.com/couchcryptid/buienradar-exporter/internal/pipeline"
	"github.com/couchcryptid/buienradar-exporter/internal/registry"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

// scriptedSource returns one batch per Fetch and repeats the last batch once
// the script runs out.
type scriptedSource struct {
	mu      sync.Mutex
	batches [][]domain.StationMeasurement
	calls   int
}

func (s *scriptedSource) Fetch(_ context.Context) iter.Seq[domain.StationMeasurement] {
	s.mu.Lock()
	defer s.mu.Unlock()

	var batch []domain.StationMeasurement
	if len(s.batches) > 0 {
		i := min(s.calls, len(s.batches)-1)
		batch = s.batches[i]
	}
	s.calls++
	return slices.Values(batch)
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	name      string
	err       error
	published [][]domain.StationMeasurement
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, stations []domain.StationMeasurement) error {
	s.published = append(s.published, stations)
	return s.err
}

// --- helpers ---

func ptr(v float64) *float64 { return &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func station(name, regio string, temp float64) domain.StationMeasurement {
	return domain.StationMeasurement{
		Name:          name,
		Regio:         regio,
		Temperature:   ptr(temp),
		WindDirection: "ZW",
		Sunrise:       "2024-10-13T08:00:00",
		Sunset:        "2024-10-13T18:45:00",
	}
}

type harness struct {
	poller  *pipeline.Poller
	source  *scriptedSource
	reg     *prometheus.Registry
	gauges  *registry.Registry
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
}

func newHarness(t *testing.T, batches [][]domain.StationMeasurement, sinks ...pipeline.Sink) *harness {
	t.Helper()
	h := &harness{
		source:  &scriptedSource{batches: batches},
		reg:     prometheus.NewRegistry(),
		metrics: observability.NewMetricsForTesting(),
		clock:   clockwork.NewFakeClock(),
	}
	h.gauges = registry.New(h.reg, registry.Options{PruneStale: true})
	h.poller = pipeline.New(h.source, h.gauges, h.clock, discardLogger(), h.metrics, sinks...)
	return h
}

func (h *harness) families(t *testing.T) map[string]int {
	t.Helper()
	mfs, err := h.reg.Gather()
	require.NoError(t, err)
	out := make(map[string]int, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = len(mf.GetMetric())
	}
	return out
}

// --- tests ---

func TestRunCycle_UpdatesGauges(t *testing.T) {
	h := newHarness(t, [][]domain.StationMeasurement{{
		station("De Bilt", "Midden", 12.3),
		station("Stavoren", "Stavoren", 13),
	}})

	require.NoError(t, h.poller.RunCycle(context.Background()))

	assert.True(t, h.gauges.Initialized())
	fams := h.families(t)
	assert.Equal(t, 2, fams["buienradar_temperature"])
	assert.Equal(t, 2, fams["buienradar_wind_direction"])
	assert.Equal(t, 1, fams["buienradar_sunrise"])
	assert.Equal(t, 1, fams["buienradar_sunset"])
	assert.NotContains(t, fams, "buienradar_sun_power")

	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.Stations))
	assert.NoError(t, h.poller.CheckReadiness(context.Background()))
}

func TestRunCycle_EmptyFetchLeavesRegistryUntouched(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.poller.RunCycle(context.Background()))

	assert.False(t, h.gauges.Initialized())
	assert.Empty(t, h.families(t))
	assert.Zero(t, testutil.ToFloat64(h.metrics.Stations))
	assert.Error(t, h.poller.CheckReadiness(context.Background()))
}

func TestRunCycle_EmptyFetchKeepsPreviousValues(t *testing.T) {
	h := newHarness(t, [][]domain.StationMeasurement{
		{station("De Bilt", "Midden", 12.3)},
		nil,
	})

	require.NoError(t, h.poller.RunCycle(context.Background()))
	require.NoError(t, h.poller.RunCycle(context.Background()))

	assert.Equal(t, 1, h.families(t)["buienradar_temperature"])
	assert.NoError(t, h.poller.CheckReadiness(context.Background()))
}

func TestRunCycle_BadSunTimesSkipped(t *testing.T) {
	bad := station("De Bilt", "Midden", 12.3)
	bad.Sunrise = "tomorrow morning"
	h := newHarness(t, [][]domain.StationMeasurement{{bad}})

	require.NoError(t, h.poller.RunCycle(context.Background()))

	fams := h.families(t)
	assert.Equal(t, 1, fams["buienradar_temperature"], "stations still update")
	assert.NotContains(t, fams, "buienradar_sunrise")
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.TimestampErrors))
}

func TestRunCycle_BadSunTimesKeepPreviousValues(t *testing.T) {
	good := station("De Bilt", "Midden", 12.3)
	bad := good
	bad.Sunset = ""
	h := newHarness(t, [][]domain.StationMeasurement{{good}, {bad}})

	require.NoError(t, h.poller.RunCycle(context.Background()))
	require.NoError(t, h.poller.RunCycle(context.Background()))

	assert.Equal(t, 1, h.families(t)["buienradar_sunset"])
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.TimestampErrors))
}

func TestRunCycle_PrunesVanishedStations(t *testing.T) {
	h := newHarness(t, [][]domain.StationMeasurement{
		{station("De Bilt", "Midden", 12.3), station("Stavoren", "Stavoren", 13)},
		{station("De Bilt", "Midden", 12.5)},
	})

	require.NoError(t, h.poller.RunCycle(context.Background()))
	require.NoError(t, h.poller.RunCycle(context.Background()))

	assert.Equal(t, 1, h.families(t)["buienradar_temperature"])
	assert.Equal(t, float64(2), testutil.ToFloat64(h.metrics.PrunedSeries))
}

func TestRunCycle_RegistrationFailure(t *testing.T) {
	h := newHarness(t, [][]domain.StationMeasurement{{station("De Bilt", "Midden", 12.3)}})
	h.reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "buienradar_airpressure", Help: "taken"}))

	err := h.poller.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize gauges")
}

func TestRunCycle_PublishesToSinks(t *testing.T) {
	ok := &recordingSink{name: "kafka"}
	failing := &recordingSink{name: "mqtt", err: errors.New("broker down")}
	h := newHarness(t, [][]domain.StationMeasurement{{station("De Bilt", "Midden", 12.3)}}, ok, failing)

	require.NoError(t, h.poller.RunCycle(context.Background()))

	require.Len(t, ok.published, 1)
	assert.Equal(t, "De Bilt", ok.published[0][0].Name)
	require.Len(t, failing.published, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.SinkErrors.WithLabelValues("mqtt")))
	assert.Zero(t, testutil.ToFloat64(h.metrics.SinkErrors.WithLabelValues("kafka")))
	assert.NoError(t, h.poller.CheckReadiness(context.Background()), "sink failures do not affect readiness")
}

func TestRunCycle_EmptyFetchSkipsSinks(t *testing.T) {
	sink := &recordingSink{name: "kafka"}
	h := newHarness(t, nil, sink)

	require.NoError(t, h.poller.RunCycle(context.Background()))
	assert.Empty(t, sink.published)
}

func TestRun_PollsOnInterval(t *testing.T) {
	h := newHarness(t, [][]domain.StationMeasurement{{station("De Bilt", "Midden", 12.3)}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- h.poller.Run(ctx) }()

	for want := 1; want <= 3; want++ {
		require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
		assert.Equal(t, want, h.source.Calls())
		assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.PollerRunning))
		h.clock.Advance(pipeline.PollInterval)
	}

	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	cancel()
	require.NoError(t, <-errCh)
	assert.Equal(t, 4, h.source.Calls())
	assert.Zero(t, testutil.ToFloat64(h.metrics.PollerRunning))
	assert.True(t, h.gauges.Initialized())
}

func TestRun_DoesNotPollBeforeInterval(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- h.poller.Run(ctx) }()

	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	h.clock.Advance(pipeline.PollInterval - time.Second)
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, h.source.Calls())

	cancel()
	require.NoError(t, <-errCh)
}

func TestRun_StopsOnRegistrationFailure(t *testing.T) {
	h := newHarness(t, [][]domain.StationMeasurement{{station("De Bilt", "Midden", 12.3)}})
	h.reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "buienradar_airpressure", Help: "taken"}))

	err := h.poller.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, h.source.Calls())
}

