package main

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteExposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "buienradar_temperature", Help: "Temperature in degrees Celsius"},
		[]string{"station", "regio"})
	reg.MustRegister(g)
	g.WithLabelValues("De Bilt", "Midden").Set(12.3)

	var buf bytes.Buffer
	require.NoError(t, writeExposition(&buf, reg))

	out := buf.String()
	assert.Contains(t, out, "# HELP buienradar_temperature Temperature in degrees Celsius")
	assert.Contains(t, out, "# TYPE buienradar_temperature gauge")
	assert.Contains(t, out, `buienradar_temperature{regio="Midden",station="De Bilt"} 12.3`)
}

func TestReadDocument(t *testing.T) {
	doc, err := readDocument("../../internal/adapter/buienradar/testdata/feed.json")
	require.NoError(t, err)
	assert.Equal(t, 3, doc.Len())

	_, err = readDocument("does-not-exist.json")
	assert.Error(t, err)
}
