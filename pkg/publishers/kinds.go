package publishers

import (
	"context"
	"slices"
)

// kindFilter restricts a publisher to a subset of event kinds.
type kindFilter struct {
	Publisher
	kinds []string
}

// WithKinds limits pub to the listed event kinds. An empty list keeps every kind.
func WithKinds(pub Publisher, kinds []string) Publisher {
	if pub == nil || len(kinds) == 0 {
		return pub
	}
	return &kindFilter{Publisher: pub, kinds: slices.Clone(kinds)}
}

// Accepts reports whether events of this kind reach the wrapped publisher.
func (k *kindFilter) Accepts(kind string) bool {
	return slices.Contains(k.kinds, kind)
}

func (k *kindFilter) Publish(ctx context.Context, evt Event) error {
	if !k.Accepts(evt.Kind) {
		return nil
	}
	return k.Publisher.Publish(ctx, evt)
}

func (k *kindFilter) Close() error {
	if c, ok := k.Publisher.(Closer); ok {
		return c.Close()
	}
	return nil
}

// accepts is true unless pub filters out the kind.
func accepts(pub Publisher, kind string) bool {
	f, ok := pub.(interface{ Accepts(string) bool })
	return !ok || f.Accepts(kind)
}
