// Package playertest provides an in-memory player.Bus for tests.
package playertest

import (
	"context"
	"sync"

	"mprisremote/internal/player"
)

// Call records one Control invocation.
type Call struct {
	Service string
	Command player.Command
}

// Bus is a scriptable player.Bus. The zero value has no players.
type Bus struct {
	mu         sync.Mutex
	services   []string
	metadata   map[string]player.Metadata
	controlErr error
	listErr    error
	mdErr      error
	calls      []Call
	queries    []string
}

// New returns a Bus listing the given services.
func New(services ...string) *Bus {
	return &Bus{services: services, metadata: make(map[string]player.Metadata)}
}

// SetMetadata sets what Metadata returns for service; an empty value means no metadata.
func (b *Bus) SetMetadata(service string, md player.Metadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.metadata == nil {
		b.metadata = make(map[string]player.Metadata)
	}
	b.metadata[service] = md
}

// SetServices replaces the registry listing.
func (b *Bus) SetServices(services ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.services = services
}

// FailControl makes every Control call return err.
func (b *Bus) FailControl(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.controlErr = err
}

// FailList makes Services return err.
func (b *Bus) FailList(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listErr = err
}

// FailMetadata makes every Metadata call return err.
func (b *Bus) FailMetadata(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mdErr = err
}

// Calls returns the Control calls made so far.
func (b *Bus) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Queries returns the services Metadata was asked about, in order.
func (b *Bus) Queries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.queries...)
}

func (b *Bus) Services(ctx context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]string(nil), b.services...), nil
}

func (b *Bus) Metadata(ctx context.Context, service string) (player.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, service)
	if b.mdErr != nil {
		return player.Metadata{}, b.mdErr
	}
	md, ok := b.metadata[service]
	if !ok || md.Empty() {
		return player.Metadata{}, player.ErrNoMetadata
	}
	return md, nil
}

func (b *Bus) Control(ctx context.Context, service string, cmd player.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Service: service, Command: cmd})
	return b.controlErr
}

func (b *Bus) Close() error { return nil }
