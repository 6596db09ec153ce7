package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
accounts_file: /etc/quakepost/accounts.yaml
max_age_hours: 24
event_media_path: /var/lib/quakepost/events
ledger:
  location: /var/lib/quakepost/ledger.db
  table_name: deliveries
  busy_timeout: 2s
spool:
  dir: /var/spool/quakepost
  retry_schedule: "*/10 * * * *"
transport:
  post_timeout: 20s
  rate_per_sec: 2
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
geo:
  timezone: America/Guayaquil
  survey_url: https://example.org/encuesta/{event_id}
  country:
    min_lat: -5.0
    max_lat: 1.5
    min_lon: -81.1
    max_lon: -75.2
    inside_message: "Evento en territorio nacional."
    outside_message: "Evento fuera del territorio nacional."
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, "quakepost.yaml", validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxAgeHours != 24 {
		t.Fatalf("MaxAgeHours = %d, want 24", cfg.MaxAgeHours)
	}
	if cfg.Ledger.Location != "/var/lib/quakepost/ledger.db" {
		t.Fatalf("Ledger.Location = %q", cfg.Ledger.Location)
	}
	if cfg.Spool == nil || cfg.Spool.RetrySchedule != "*/10 * * * *" {
		t.Fatalf("Spool = %+v", cfg.Spool)
	}
	if cfg.Geo.Country.Inside == "" || cfg.Geo.Country.MinLon != -81.1 {
		t.Fatalf("Geo.Country = %+v", cfg.Geo.Country)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	content := `{
	  "accounts_file": "/etc/quakepost/accounts.yaml",
	  "max_age_hours": 12,
	  "event_media_path": "/tmp/events",
	  "ledger": {"location": "/tmp/ledger.db"},
	  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
	  "geo": {"timezone": "UTC", "country": {"min_lat": 0, "max_lat": 0, "min_lon": 0, "max_lon": 0, "inside_message": "", "outside_message": ""}}
	}`
	cfg, err := Load(writeConfig(t, "quakepost.json", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxAgeHours != 12 || cfg.Geo.Timezone != "UTC" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := Load(writeConfig(t, "bad.yaml", validYAML+"\nhour_limit: 24\n"))
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(s string) string
		want   string
	}{
		{
			name:   "missing accounts file",
			mutate: func(s string) string { return strings.Replace(s, "accounts_file: /etc/quakepost/accounts.yaml", "accounts_file: \"\"", 1) },
			want:   "accounts_file",
		},
		{
			name:   "missing ledger location",
			mutate: func(s string) string { return strings.Replace(s, "location: /var/lib/quakepost/ledger.db", "location: \"\"", 1) },
			want:   "ledger.location",
		},
		{
			name:   "missing timezone",
			mutate: func(s string) string { return strings.Replace(s, "timezone: America/Guayaquil", "timezone: \"\"", 1) },
			want:   "geo.timezone",
		},
		{
			name:   "bad duration",
			mutate: func(s string) string { return strings.Replace(s, "post_timeout: 20s", "post_timeout: soon", 1) },
			want:   "post_timeout",
		},
		{
			name:   "spool without dir",
			mutate: func(s string) string { return strings.Replace(s, "dir: /var/spool/quakepost", "dir: \"\"", 1) },
			want:   "spool.dir",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "quakepost.yaml", tt.mutate(validYAML)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
