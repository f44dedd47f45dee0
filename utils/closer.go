package utils

import "errors"

type Closer interface {
	Close() error
}

// CloserFunc adapts a plain function to Closer.
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

// CloserGroup closes its members in reverse registration order.
type CloserGroup struct {
	closers []Closer
}

func NewCloserGroup(closers ...Closer) *CloserGroup {
	return &CloserGroup{closers: closers}
}

func (g *CloserGroup) Add(c Closer) {
	g.closers = append(g.closers, c)
}

// Close runs every closer and joins their errors.
func (g *CloserGroup) Close() error {
	var errs []error
	for i := len(g.closers) - 1; i >= 0; i-- {
		if err := g.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
