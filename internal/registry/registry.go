// Package registry resolves destination names to transport credentials.
// The accounts file is read once at startup; lookups are pure and the
// registry is never mutated afterwards.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

var ErrUnknownDestination = errors.New("unknown destination")

// Kind selects the outbound transport for a destination.
type Kind string

const (
	KindFacebook Kind = "facebook"
	KindTelegram Kind = "telegram"
)

// Destination is one named publication target and its credentials.
// The credential fields are opaque to everything except the matching
// transport implementation.
type Destination struct {
	Name   string `yaml:"-"`
	Kind   Kind   `yaml:"kind"`
	Token  string `yaml:"token"`
	PageID string `yaml:"page_id,omitempty"` // facebook
	ChatID int64  `yaml:"chat_id,omitempty"` // telegram
}

type accountsFile struct {
	Accounts map[string]Destination `yaml:"accounts"`
}

// Registry is a read-only name -> Destination lookup.
type Registry struct {
	byName map[string]Destination
}

// Load reads and validates the accounts file. A malformed or empty file
// is a configuration error and fatal at startup.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var af accountsFile
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&af); err != nil {
		return nil, fmt.Errorf("parse accounts file %s: %w", path, err)
	}
	if len(af.Accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s defines no destinations", path)
	}

	byName := make(map[string]Destination, len(af.Accounts))
	for name, d := range af.Accounts {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("accounts file %s: empty destination name", path)
		}
		d.Name = name
		if err := validate(d); err != nil {
			return nil, fmt.Errorf("accounts file %s: destination %q: %w", path, name, err)
		}
		byName[name] = d
	}
	return &Registry{byName: byName}, nil
}

func validate(d Destination) error {
	if strings.TrimSpace(d.Token) == "" {
		return errors.New("token is required")
	}
	switch d.Kind {
	case KindFacebook:
		if strings.TrimSpace(d.PageID) == "" {
			return errors.New("page_id is required for facebook destinations")
		}
	case KindTelegram:
		if d.ChatID == 0 {
			return errors.New("chat_id is required for telegram destinations")
		}
	default:
		return fmt.Errorf("unsupported kind %q", d.Kind)
	}
	return nil
}

// Resolve looks a destination up by name.
func (r *Registry) Resolve(name string) (Destination, error) {
	d, ok := r.byName[name]
	if !ok {
		return Destination{}, fmt.Errorf("%w: %s", ErrUnknownDestination, name)
	}
	return d, nil
}

// Names returns all destination names, sorted for stable iteration.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
