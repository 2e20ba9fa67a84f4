package domain

// StationMeasurement is one station's observation from a single feed fetch.
// Numeric fields are nil when the feed omits them or reports null.
type StationMeasurement struct {
	StationID  int    `json:"station_id,omitempty"`
	Name       string `json:"name"`
	Regio      string `json:"regio"`
	MeasuredAt string `json:"measured_at,omitempty"`

	AirPressure          *float64 `json:"airpressure,omitempty"`
	Visibility           *float64 `json:"visibility,omitempty"`
	Lat                  *float64 `json:"lat,omitempty"`
	Lon                  *float64 `json:"lon,omitempty"`
	Temperature          *float64 `json:"temperature,omitempty"`
	GroundTemperature    *float64 `json:"groundtemperature,omitempty"`
	FeelTemperature      *float64 `json:"feeltemperature,omitempty"`
	WindGusts            *float64 `json:"windgusts,omitempty"`
	WindSpeed            *float64 `json:"windspeed,omitempty"`
	WindSpeedBft         *float64 `json:"windspeed_bft,omitempty"`
	Humidity             *float64 `json:"humidity,omitempty"`
	Precipitation        *float64 `json:"precipitation,omitempty"`
	RainFallLast24Hour   *float64 `json:"rain_fall_last_24_hour,omitempty"`
	RainFallLastHour     *float64 `json:"rain_fall_last_hour,omitempty"`
	WindDirectionDegrees *float64 `json:"winddirection_degrees,omitempty"`
	SunPower             *float64 `json:"sun_power,omitempty"`

	// Categorical fields, empty when absent.
	WeatherDescription string `json:"weatherdescription,omitempty"`
	WindDirection      string `json:"winddirection,omitempty"`

	// Feed-wide values copied onto every station.
	Sunrise string `json:"sunrise,omitempty"`
	Sunset  string `json:"sunset,omitempty"`
}

// Reading is a single present numeric value of a station.
type Reading struct {
	Metric string
	Value  float64
}

// Metric names of the numeric fields, in exposition order.
const (
	MetricAirPressure          = "airpressure"
	MetricVisibility           = "visibility"
	MetricLat                  = "lat"
	MetricLon                  = "lon"
	MetricTemperature          = "temperature"
	MetricGroundTemperature    = "groundtemperature"
	MetricFeelTemperature      = "feeltemperature"
	MetricWindGusts            = "windgusts"
	MetricWindSpeed            = "windspeed"
	MetricWindSpeedBft         = "windspeed_bft"
	MetricHumidity             = "humidity"
	MetricPrecipitation        = "precipitation"
	MetricRainFallLast24Hour   = "rain_fall_last_24_hour"
	MetricRainFallLastHour     = "rain_fall_last_hour"
	MetricWindDirectionDegrees = "winddirection_degrees"
	MetricSunPower             = "sun_power"
)

// Readings returns the station's non-nil numeric fields in a fixed order.
func (m StationMeasurement) Readings() []Reading {
	fields := []struct {
		metric string
		value  *float64
	}{
		{MetricAirPressure, m.AirPressure},
		{MetricVisibility, m.Visibility},
		{MetricLat, m.Lat},
		{MetricLon, m.Lon},
		{MetricTemperature, m.Temperature},
		{MetricGroundTemperature, m.GroundTemperature},
		{MetricFeelTemperature, m.FeelTemperature},
		{MetricWindGusts, m.WindGusts},
		{MetricWindSpeed, m.WindSpeed},
		{MetricWindSpeedBft, m.WindSpeedBft},
		{MetricHumidity, m.Humidity},
		{MetricPrecipitation, m.Precipitation},
		{MetricRainFallLast24Hour, m.RainFallLast24Hour},
		{MetricRainFallLastHour, m.RainFallLastHour},
		{MetricWindDirectionDegrees, m.WindDirectionDegrees},
		{MetricSunPower, m.SunPower},
	}

	out := make([]Reading, 0, len(fields))
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		out = append(out, Reading{Metric: f.metric, Value: *f.value})
	}
	return out
}

// Key identifies the station as "<regio>/<name>".
func (m StationMeasurement) Key() string {
	return m.Regio + "/" + m.Name
}
