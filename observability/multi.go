package observability

import "context"

// MultiObserver fans each event out to several observers in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver drops nil entries and returns the fan-out.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	kept := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			kept = append(kept, o)
		}
	}
	return &MultiObserver{observers: kept}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, o := range m.observers {
		o.OnEvent(ctx, event)
	}
}
