// Package registry owns the per-station Buienradar gauges.
//
// Gauges are created once, on the first poll that returned data, and live for
// the rest of the process. Every poll cycle is bracketed by BeginCycle and
// EndCycle so that label-sets not written during the cycle can be pruned.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/couchcryptid/buienradar-exporter/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Label names.
const (
	LabelStation            = "station"
	LabelRegio              = "regio"
	LabelWeatherDescription = "weatherdescription"
	LabelWindDirection      = "winddirection"
)

// GlobalLabel is the station and regio value of feed-wide gauges.
const GlobalLabel = "global"

const (
	metricWeatherDescription = "weatherdescription"
	metricWindDirection      = "winddirection"
	metricSunrise            = "sunrise"
	metricSunset             = "sunset"
)

type gaugeDef struct {
	metric string
	name   string
	help   string
	// categoryKey is the extra label of categorical gauges.
	categoryKey string
}

var gaugeDefs = []gaugeDef{
	{metric: domain.MetricAirPressure, help: "Air pressure in hPa"},
	{metric: domain.MetricVisibility, help: "Visibility in meters"},
	{metric: domain.MetricLat, help: "Latitude of the station"},
	{metric: domain.MetricLon, help: "Longitude of the station"},
	{metric: domain.MetricTemperature, help: "Temperature in degrees Celsius"},
	{metric: domain.MetricGroundTemperature, help: "Ground temperature in degrees Celsius"},
	{metric: domain.MetricFeelTemperature, help: "Feels-like temperature in degrees Celsius"},
	{metric: domain.MetricWindGusts, help: "Wind gust speed in meters per second"},
	{metric: domain.MetricWindSpeed, help: "Wind speed in meters per second"},
	{metric: domain.MetricWindSpeedBft, help: "Wind speed on the Beaufort scale"},
	{metric: domain.MetricHumidity, help: "Humidity in percentage"},
	{metric: domain.MetricPrecipitation, help: "Precipitation in millimeters"},
	{metric: domain.MetricRainFallLast24Hour, help: "Rainfall in the last 24 hours in millimeters"},
	{metric: domain.MetricRainFallLastHour, help: "Rainfall in the last hour in millimeters"},
	{metric: domain.MetricWindDirectionDegrees, help: "Wind direction in degrees"},
	{metric: domain.MetricSunPower, help: "Sun power in watts per square meter"},
	{metric: metricSunrise, help: "Time of sunrise in epoch seconds"},
	{metric: metricSunset, help: "Time of sunset in epoch seconds"},
	{
		metric:      metricWeatherDescription,
		name:        "buienradar_weather_description",
		help:        "Weather description of the station",
		categoryKey: LabelWeatherDescription,
	},
	{
		metric:      metricWindDirection,
		name:        "buienradar_wind_direction",
		help:        "Wind direction of the station",
		categoryKey: LabelWindDirection,
	},
}

func (d gaugeDef) fqName() string {
	if d.name != "" {
		return d.name
	}
	return "buienradar_" + d.metric
}

func (d gaugeDef) labelNames() []string {
	if d.categoryKey == "" {
		return []string{LabelStation, LabelRegio}
	}
	return []string{LabelStation, LabelRegio, d.categoryKey}
}

// labelSet identifies one series. Categorical series carry a third label.
type labelSet struct {
	station       string
	regio         string
	categoryKey   string
	categoryValue string
}

func stationLabels(m domain.StationMeasurement) labelSet {
	return labelSet{station: m.Name, regio: m.Regio}
}

func categoryLabels(m domain.StationMeasurement, key, value string) labelSet {
	return labelSet{station: m.Name, regio: m.Regio, categoryKey: key, categoryValue: value}
}

func globalLabels() labelSet {
	return labelSet{station: GlobalLabel, regio: GlobalLabel}
}

// values returns label values in gaugeDef.labelNames order.
func (l labelSet) values() []string {
	if l.categoryKey == "" {
		return []string{l.station, l.regio}
	}
	return []string{l.station, l.regio, l.categoryValue}
}

func (l labelSet) key() string {
	return strings.Join(l.values(), "\xff")
}

// Options tunes registry behavior.
type Options struct {
	// PruneStale removes label-sets that were not written in the latest cycle.
	PruneStale bool
}

// Registry maps metric names to gauge vectors registered with a Prometheus
// registerer. It is safe for concurrent use.
type Registry struct {
	registerer prometheus.Registerer
	opts       Options

	mu          sync.Mutex
	initialized bool
	gauges      map[string]*prometheus.GaugeVec
	// live holds the label-sets written in the last completed cycle, current
	// those written since BeginCycle.
	live    map[string]map[string]labelSet
	current map[string]map[string]labelSet
}

// New creates an uninitialized registry.
func New(registerer prometheus.Registerer, opts Options) *Registry {
	return &Registry{
		registerer: registerer,
		opts:       opts,
		gauges:     make(map[string]*prometheus.GaugeVec, len(gaugeDefs)),
		live:       make(map[string]map[string]labelSet),
	}
}

// Initialized reports whether the gauges have been created.
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// EnsureInitialized creates and registers every gauge on the first call.
// Later calls are no-ops. A gauge becomes visible to scrapes only once it is
// fully constructed and registered.
func (r *Registry) EnsureInitialized() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return nil
	}

	gauges := make(map[string]*prometheus.GaugeVec, len(gaugeDefs))
	for _, def := range gaugeDefs {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: def.fqName(),
			Help: def.help,
		}, def.labelNames())
		if err := r.registerer.Register(g); err != nil {
			for _, registered := range gauges {
				r.registerer.Unregister(registered)
			}
			return fmt.Errorf("register gauge %s: %w", def.fqName(), err)
		}
		gauges[def.metric] = g
	}

	r.gauges = gauges
	r.initialized = true
	return nil
}

// BeginCycle starts tracking the label-sets written in a new cycle.
func (r *Registry) BeginCycle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = make(map[string]map[string]labelSet)
}

// Update writes every present field of a station. Numeric fields are set at
// {station, regio}; categorical fields are set to 1 at
// {station, regio, <category>}.
func (r *Registry) Update(m domain.StationMeasurement) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reading := range m.Readings() {
		r.set(reading.Metric, stationLabels(m), reading.Value)
	}
	if m.WeatherDescription != "" {
		r.set(metricWeatherDescription, categoryLabels(m, LabelWeatherDescription, m.WeatherDescription), 1)
	}
	if m.WindDirection != "" {
		r.set(metricWindDirection, categoryLabels(m, LabelWindDirection, m.WindDirection), 1)
	}
}

// SetSunTimes writes the feed-wide sunrise and sunset epochs. These series
// are never pruned.
func (r *Registry) SetSunTimes(sunrise, sunset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.initialized {
		return
	}
	global := globalLabels().values()
	r.gauges[metricSunrise].WithLabelValues(global...).Set(float64(sunrise))
	r.gauges[metricSunset].WithLabelValues(global...).Set(float64(sunset))
}

// EndCycle closes the cycle. With pruning enabled, series written in the
// previous cycle but not in this one are deleted. It returns the number of
// series removed.
func (r *Registry) EndCycle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.current
	r.current = nil
	if current == nil || !r.opts.PruneStale {
		return 0
	}

	pruned := 0
	for metric, sets := range r.live {
		for k, ls := range sets {
			if _, ok := current[metric][k]; ok {
				continue
			}
			if r.gauges[metric].DeleteLabelValues(ls.values()...) {
				pruned++
			}
		}
	}
	r.live = current
	return pruned
}

// set must be called with r.mu held. Writes before initialization are dropped.
func (r *Registry) set(metric string, ls labelSet, v float64) {
	g, ok := r.gauges[metric]
	if !ok {
		return
	}
	g.WithLabelValues(ls.values()...).Set(v)

	if r.current == nil || !r.opts.PruneStale {
		return
	}
	if r.current[metric] == nil {
		r.current[metric] = make(map[string]labelSet)
	}
	r.current[metric][ls.key()] = ls
}
