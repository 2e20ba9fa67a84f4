// Package domain models Buienradar weather-station measurements.
//
// # Data Source
//
// Measurements come from the public Buienradar JSON feed at
// https://data.buienradar.nl/2.0/feed/json. Buienradar republishes KNMI
// station observations, which KNMI refreshes every ten minutes. The feed
// shape relevant here is:
//
//	{
//	  "actual": {
//	    "sunrise": "2024-10-13T08:00:00",
//	    "sunset":  "2024-10-13T18:45:00",
//	    "stationmeasurements": [
//	      {"stationname": "Meetstation De Bilt", "regio": "Midden", "temperature": 12.3, ...}
//	    ]
//	  }
//	}
//
// # Station Identity
//
// Station names carry a "Meetstation " prefix which is stripped. Names are
// not unique on their own, so a station is identified by name and region
// together; both become Prometheus labels.
//
// # Field Conventions
//
// Every numeric field may be missing or null when a station does not measure
// it (most stations lack sunpower or groundtemperature). Absent values are nil
// and are never exposed as zero.
//
// The weather description ("Zwaar bewolkt") and compass wind direction ("ZW")
// are categorical. They are exposed as a label on a gauge whose value is
// always 1.
//
// # Time Format
//
// Sunrise and sunset are feed-wide, not per station, and are written as
// naive civil time without an offset: "2006-01-02T15:04:05". They are
// interpreted in the process's local time zone, see [ToEpoch].
package domain
