package realtime

import "context"

// Transport opens connections to a real-time endpoint.
type Transport interface {
	// Dial connects and authenticates with token. Lifecycle events and
	// publications for the new connection are reported to sink.
	Dial(ctx context.Context, endpoint, token string, sink EventSink) (Conn, error)
}

// Conn is one established transport connection.
type Conn interface {
	Subscribe(ctx context.Context, channel, token string) (TransportSubscription, error)
	Close() error
}

// TransportSubscription is a transport-level channel subscription.
type TransportSubscription interface {
	Unsubscribe() error
}
