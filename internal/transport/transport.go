// Package transport sends rendered bulletins to publication providers.
//
// The dispatcher only depends on the Poster interface; a successful
// return means the provider accepted the content for publication and
// the returned reference identifies the resulting post.
package transport

import (
	"context"
	"errors"
	"fmt"

	"quakepost/internal/registry"
)

var ErrNoTransport = errors.New("no transport for destination kind")

// Poster publishes one bulletin to one destination. mediaRef may be
// empty, in which case a text-only post is made. Implementations must
// honor ctx cancellation and deadlines.
type Poster interface {
	Post(ctx context.Context, dest registry.Destination, text, mediaRef string) (string, error)
}

// Mux routes a post to the Poster registered for the destination kind.
type Mux struct {
	posters map[registry.Kind]Poster
}

func NewMux() *Mux {
	return &Mux{posters: map[registry.Kind]Poster{}}
}

func (m *Mux) Handle(kind registry.Kind, p Poster) *Mux {
	m.posters[kind] = p
	return m
}

func (m *Mux) Post(ctx context.Context, dest registry.Destination, text, mediaRef string) (string, error) {
	p, ok := m.posters[dest.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoTransport, dest.Kind)
	}
	return p.Post(ctx, dest, text, mediaRef)
}
