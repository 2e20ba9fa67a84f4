package buienradar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/couchcryptid/buienradar-exporter/internal/domain"
)

// stationPrefix is stripped from every station name.
const stationPrefix = "Meetstation "

var errMissingStations = errors.New("feed has no actual.stationmeasurements")

// Document is a decoded Buienradar feed.
type Document struct {
	Actual *actual `json:"actual"`
}

type actual struct {
	Sunrise             feedString   `json:"sunrise"`
	Sunset              feedString   `json:"sunset"`
	StationMeasurements []rawStation `json:"stationmeasurements"`
}

// rawStation mirrors a feed entry. Field types are lenient: a value of the
// wrong JSON type decodes as absent instead of failing the whole document.
type rawStation struct {
	StationID            feedNumber `json:"stationid"`
	StationName          feedString `json:"stationname"`
	Regio                feedString `json:"regio"`
	Timestamp            feedString `json:"timestamp"`
	WeatherDescription   feedString `json:"weatherdescription"`
	WindDirection        feedString `json:"winddirection"`
	AirPressure          feedNumber `json:"airpressure"`
	Visibility           feedNumber `json:"visibility"`
	Lat                  feedNumber `json:"lat"`
	Lon                  feedNumber `json:"lon"`
	Temperature          feedNumber `json:"temperature"`
	GroundTemperature    feedNumber `json:"groundtemperature"`
	FeelTemperature      feedNumber `json:"feeltemperature"`
	WindGusts            feedNumber `json:"windgusts"`
	WindSpeed            feedNumber `json:"windspeed"`
	WindSpeedBft         feedNumber `json:"windspeedBft"`
	Humidity             feedNumber `json:"humidity"`
	Precipitation        feedNumber `json:"precipitation"`
	RainFallLast24Hour   feedNumber `json:"rainFallLast24Hour"`
	RainFallLastHour     feedNumber `json:"rainFallLastHour"`
	WindDirectionDegrees feedNumber `json:"winddirectiondegrees"`
	SunPower             feedNumber `json:"sunpower"`
}

// DecodeDocument reads a feed document. It fails on malformed JSON and on
// documents without a station list.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if doc.Actual == nil || doc.Actual.StationMeasurements == nil {
		return nil, errMissingStations
	}
	return &doc, nil
}

// Len returns the number of stations Stations yields.
func (d *Document) Len() int {
	n := 0
	for range d.Stations() {
		n++
	}
	return n
}

// Stations yields one normalized measurement per station entry. Entries
// without a station name (null elements included) are skipped.
func (d *Document) Stations() iter.Seq[domain.StationMeasurement] {
	return func(yield func(domain.StationMeasurement) bool) {
		for _, raw := range d.Actual.StationMeasurements {
			m := normalize(raw, d.Actual.Sunrise.value, d.Actual.Sunset.value)
			if m.Name == "" {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}
}

func normalize(raw rawStation, sunrise, sunset string) domain.StationMeasurement {
	m := domain.StationMeasurement{
		Name:       strings.TrimPrefix(raw.StationName.value, stationPrefix),
		Regio:      raw.Regio.value,
		MeasuredAt: raw.Timestamp.value,

		AirPressure:          raw.AirPressure.value,
		Visibility:           raw.Visibility.value,
		Lat:                  raw.Lat.value,
		Lon:                  raw.Lon.value,
		Temperature:          raw.Temperature.value,
		GroundTemperature:    raw.GroundTemperature.value,
		FeelTemperature:      raw.FeelTemperature.value,
		WindGusts:            raw.WindGusts.value,
		WindSpeed:            raw.WindSpeed.value,
		WindSpeedBft:         raw.WindSpeedBft.value,
		Humidity:             raw.Humidity.value,
		Precipitation:        raw.Precipitation.value,
		RainFallLast24Hour:   raw.RainFallLast24Hour.value,
		RainFallLastHour:     raw.RainFallLastHour.value,
		WindDirectionDegrees: raw.WindDirectionDegrees.value,
		SunPower:             raw.SunPower.value,

		WeatherDescription: raw.WeatherDescription.value,
		WindDirection:      raw.WindDirection.value,

		Sunrise: sunrise,
		Sunset:  sunset,
	}
	if raw.StationID.value != nil {
		m.StationID = int(*raw.StationID.value)
	}
	return m
}

// feedNumber accepts JSON numbers and numeric strings. Anything else is nil.
type feedNumber struct {
	value *float64
}

func (n *feedNumber) UnmarshalJSON(b []byte) error {
	n.value = nil
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.value = &f
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			n.value = &f
		}
	}
	return nil
}

// feedString accepts JSON strings. Anything else is empty.
type feedString struct {
	value string
}

func (s *feedString) UnmarshalJSON(b []byte) error {
	s.value = ""
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err == nil {
		s.value = v
	}
	return nil
}
