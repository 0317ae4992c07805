// file: internal/transport/in_memory_transport.go
package transport

import (
	"context"
	"sync"
)

// InMemoryTransport implements Transport over channels. Two linked instances
// form a pair; what one writes, the other reads.
type InMemoryTransport struct {
	incoming <-chan []byte
	outgoing chan<- []byte

	// peerDone is closed when the paired transport closes.
	peerDone <-chan struct{}
	done     chan struct{}

	closeOnce sync.Once
	writeLock sync.Mutex
}

// InMemoryTransportPair holds two linked transports.
type InMemoryTransportPair struct {
	ClientTransport *InMemoryTransport
	ServerTransport *InMemoryTransport
}

// NewInMemoryTransportPair creates a linked pair with buffered channels.
func NewInMemoryTransportPair() *InMemoryTransportPair {
	clientToServer := make(chan []byte, 100)
	serverToClient := make(chan []byte, 100)
	clientDone := make(chan struct{})
	serverDone := make(chan struct{})

	return &InMemoryTransportPair{
		ClientTransport: &InMemoryTransport{
			incoming: serverToClient,
			outgoing: clientToServer,
			peerDone: serverDone,
			done:     clientDone,
		},
		ServerTransport: &InMemoryTransport{
			incoming: clientToServer,
			outgoing: serverToClient,
			peerDone: clientDone,
			done:     serverDone,
		},
	}
}

// ReadMessage implements Transport. Messages already queued by the peer are
// delivered before its closure is reported.
func (t *InMemoryTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
		return nil, NewClosedError("read")
	default:
	}

	select {
	case <-ctx.Done():
		return nil, NewTimeoutError("read", ctx.Err())
	case <-t.done:
		return nil, NewClosedError("read")
	case msg := <-t.incoming:
		if err := ValidateMessage(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case <-t.peerDone:
		select {
		case msg := <-t.incoming:
			if err := ValidateMessage(msg); err != nil {
				return nil, err
			}
			return msg, nil
		default:
			return nil, NewError(ErrTransportClosed, "connection closed by peer", nil)
		}
	}
}

// WriteMessage implements Transport.
func (t *InMemoryTransport) WriteMessage(ctx context.Context, message []byte) error {
	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	select {
	case <-t.done:
		return NewClosedError("write")
	case <-t.peerDone:
		return NewError(ErrGeneric, "failed to write message", errPeerGone)
	default:
	}
	if len(message) > MaxMessageSize {
		return NewMessageSizeError(len(message), MaxMessageSize, message)
	}
	if err := ValidateMessage(message); err != nil {
		return err
	}

	buf := make([]byte, len(message))
	copy(buf, message)
	select {
	case <-ctx.Done():
		return NewTimeoutError("write", ctx.Err())
	case <-t.done:
		return NewClosedError("write")
	case t.outgoing <- buf:
		return nil
	}
}

// Close implements Transport.
func (t *InMemoryTransport) Close() error {
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}
