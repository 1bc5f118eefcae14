package firestore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

const defaultDialTimeout = 10 * time.Second

// Provider lazily initialises a shared Firestore client.
type Provider struct {
	projectID   string
	databaseID  string
	dialTimeout time.Duration
	clientOpts  []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

// ProviderOption customises provider construction.
type ProviderOption func(*Provider)

// WithDatabaseID selects a non-default Firestore database.
func WithDatabaseID(databaseID string) ProviderOption {
	return func(p *Provider) {
		if databaseID != "" {
			p.databaseID = databaseID
		}
	}
}

// WithDialTimeout bounds the initial client dial.
func WithDialTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.dialTimeout = timeout
		}
	}
}

// WithClientOptions forwards extra options to the Firestore client, used by
// emulator and credential overrides.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// NewProvider builds a provider for the given project.
func NewProvider(projectID string, opts ...ProviderOption) (*Provider, error) {
	if projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}

	p := &Provider{
		projectID:   projectID,
		databaseID:  firestore.DefaultDatabaseID,
		dialTimeout: defaultDialTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Client returns the shared client, dialing it on first use.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("firestore: provider is closed")
	}
	if p.client != nil {
		return p.client, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	client, err := firestore.NewClientWithDatabase(dialCtx, p.projectID, p.databaseID, p.clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: dial client: %w", err)
	}
	p.client = client
	return p.client, nil
}

// Healthy verifies backend connectivity with a cheap read.
func (p *Provider) Healthy(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	iter := client.Collections(ctx)
	if _, err := iter.Next(); err != nil && !isIteratorDone(err) {
		return WrapError("firestore.Healthy", err)
	}
	return nil
}

// Close releases the underlying client. The provider cannot be reused.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
