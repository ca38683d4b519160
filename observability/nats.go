package observability

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used to publish events.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSObserver publishes each event as JSON on "<prefix>.<event type>", so
// subscribers can filter with wildcards such as "shellpilot.kernel.>".
// Publish failures are reported to onError and never reach the caller.
type NATSObserver struct {
	pub     Publisher
	prefix  string
	minimum Level
	onError func(error)
}

// NATSOption configures a NATSObserver.
type NATSOption func(*NATSObserver)

// WithMinLevel drops events below level.
func WithMinLevel(level Level) NATSOption {
	return func(o *NATSObserver) { o.minimum = level }
}

// WithPublishErrorHandler receives publish and encoding failures.
func WithPublishErrorHandler(fn func(error)) NATSOption {
	return func(o *NATSObserver) { o.onError = fn }
}

// NewNATSObserver creates an observer publishing through pub.
func NewNATSObserver(pub Publisher, prefix string, opts ...NATSOption) *NATSObserver {
	o := &NATSObserver{
		pub:     pub,
		prefix:  strings.TrimSuffix(prefix, "."),
		onError: func(error) {},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ConnectNATS dials url and returns an observer that owns the connection.
// Close the returned connection to flush and release it.
func ConnectNATS(url, prefix string, opts ...NATSOption) (*NATSObserver, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("shellpilot"))
	if err != nil {
		return nil, nil, err
	}
	return NewNATSObserver(nc, prefix, opts...), nc, nil
}

// Subject returns the subject an event of type typ is published on.
func (o *NATSObserver) Subject(typ EventType) string {
	if o.prefix == "" {
		return string(typ)
	}
	return o.prefix + "." + string(typ)
}

func (o *NATSObserver) OnEvent(_ context.Context, event Event) {
	if event.Level < o.minimum {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		o.onError(err)
		return
	}
	if err := o.pub.Publish(o.Subject(event.Type), data); err != nil {
		o.onError(err)
	}
}
