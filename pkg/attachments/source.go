package attachments

import (
	"context"

	"github.com/aretw0/lifecycle"
)

type mirrorSource struct {
	events <-chan Event
	out    chan lifecycle.Event
}

// NewSource bridges a mirror's event channel to the generic lifecycle
// Source interface, so a supervised app can consume mirror events next
// to its other workers.
func NewSource(events <-chan Event) lifecycle.Source {
	return &mirrorSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *mirrorSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *mirrorSource) Start(ctx context.Context) error {
	// lifecycle.Go keeps the bridge goroutine tracked and panic-safe.
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				// Event implements lifecycle.Event (has String())
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
