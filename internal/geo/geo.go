// Package geo supplies the location-derived fragments of a bulletin:
// nearest city, country-specific message, local-time conversion and the
// felt-report survey URL. All lookups are pure.
package geo

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config comes from the geo section of the service config.
type Config struct {
	CitiesFile string
	Timezone   string // IANA name, e.g. "America/Guayaquil"
	SurveyURL  string // template with {event_id} and {date} placeholders
	Country    CountryConfig
}

// CountryConfig selects the country-specific closing message by a
// bounding box around the national territory.
type CountryConfig struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	Inside         string
	Outside        string
}

// City is one row of the cities table.
type City struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type citiesFile struct {
	Cities []City `yaml:"cities"`
}

// Service implements event.Localizer.
type Service struct {
	cfg    Config
	cities []City
	loc    *time.Location
}

// New loads the cities table and resolves the timezone. Both are
// configuration: failures here are fatal at startup.
func New(cfg Config) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("geo timezone %q: %w", cfg.Timezone, err)
	}

	var cities []City
	if strings.TrimSpace(cfg.CitiesFile) != "" {
		b, err := os.ReadFile(cfg.CitiesFile)
		if err != nil {
			return nil, fmt.Errorf("read cities file: %w", err)
		}
		var cf citiesFile
		dec := yaml.NewDecoder(strings.NewReader(string(b)))
		dec.KnownFields(true)
		if err := dec.Decode(&cf); err != nil {
			return nil, fmt.Errorf("parse cities file %s: %w", cfg.CitiesFile, err)
		}
		cities = cf.Cities
	}

	return &Service{cfg: cfg, cities: cities, loc: loc}, nil
}

// NearestCity returns the name of the closest city in the table, or ""
// when the table is empty.
func (s *Service) NearestCity(lat, lon float64) string {
	best := ""
	bestDist := math.MaxFloat64
	for _, c := range s.cities {
		if d := haversineKm(lat, lon, c.Lat, c.Lon); d < bestDist {
			bestDist = d
			best = c.Name
		}
	}
	return best
}

// CountryMessage picks the inside- or outside-territory closing message.
func (s *Service) CountryMessage(lat, lon float64) string {
	c := s.cfg.Country
	if lat >= c.MinLat && lat <= c.MaxLat && lon >= c.MinLon && lon <= c.MaxLon {
		return c.Inside
	}
	return c.Outside
}

// Localize converts a UTC origin time to the configured local zone.
func (s *Service) Localize(utc time.Time) time.Time {
	return utc.In(s.loc)
}

// SurveyURL renders the felt-report URL for an event.
func (s *Service) SurveyURL(local time.Time, eventID string) string {
	u := s.cfg.SurveyURL
	u = strings.ReplaceAll(u, "{event_id}", eventID)
	u = strings.ReplaceAll(u, "{date}", local.Format("20060102150405"))
	return u
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
