// Package mapimage renders event map images on durable storage at a
// deterministic path keyed by event id. Generation is idempotent: an
// existing image is never re-fetched.
package mapimage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	logx "quakepost/pkg/logx"
)

// Config comes from the maps section of the service config.
type Config struct {
	// BasePath is the event media root; images land at
	// <BasePath>/<id>/<id>-map.png.
	BasePath string
	// URL is the primary static-map URL template with {lat} and {lon}
	// placeholders.
	URL string
	// FallbackURL is tried when the primary fetch fails (the original
	// deployment fell back from a hosted map service to its own GIS).
	FallbackURL string
	Timeout     time.Duration
}

// Generator fetches static maps over HTTP. Implements event.MapMaker.
type Generator struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Generator{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}
}

func (g *Generator) pngPath(eventID string) string {
	return filepath.Join(g.cfg.BasePath, eventID, eventID+"-map.png")
}

func (g *Generator) jpgPath(eventID string) string {
	return filepath.Join(g.cfg.BasePath, eventID, eventID+"-map.jpg")
}

// Find returns the path of an existing map image for the event (png
// preferred, jpg as the legacy fallback), or "" when none exists.
func (g *Generator) Find(eventID string) string {
	if p := g.pngPath(eventID); fileExists(p) {
		return p
	}
	if p := g.jpgPath(eventID); fileExists(p) {
		return p
	}
	return ""
}

// Ensure fetches the map image unless it already exists. Tries the
// primary URL template first, then the fallback.
func (g *Generator) Ensure(ctx context.Context, lat, lon float64, eventID string) error {
	path := g.pngPath(eventID)
	if fileExists(path) || fileExists(g.jpgPath(eventID)) {
		return nil
	}
	if strings.TrimSpace(g.cfg.URL) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	err := g.fetch(ctx, expand(g.cfg.URL, lat, lon), path)
	if err != nil && strings.TrimSpace(g.cfg.FallbackURL) != "" {
		g.log.Warn("primary map fetch failed, trying fallback",
			logx.String("event_id", eventID), logx.Err(err))
		err = g.fetch(ctx, expand(g.cfg.FallbackURL, lat, lon), path)
	}
	return err
}

func (g *Generator) fetch(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch map: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch map: status %d", resp.StatusCode)
	}

	// Write via a temp file so a half-downloaded image never shows up
	// at the deterministic path.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".map-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write map: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func expand(tmpl string, lat, lon float64) string {
	s := strings.ReplaceAll(tmpl, "{lat}", strconv.FormatFloat(lat, 'f', 4, 64))
	return strings.ReplaceAll(s, "{lon}", strconv.FormatFloat(lon, 'f', 4, 64))
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
