package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	defaultTxAttempts = 5
	defaultTxTimeout  = 15 * time.Second
)

// TxFunc is executed inside a Firestore transaction. The transaction handle is
// also stashed in the context so repositories can join it transparently.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises transaction execution.
type TxOption func(*txOptions)

type txOptions struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts sets the maximum number of commit attempts.
func WithTxAttempts(attempts int) TxOption {
	return func(o *txOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the whole transaction, retries included.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(o *txOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

type txContextKey struct{}

// ContextWithTx stores a transaction handle in the context.
func ContextWithTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the ambient transaction, if any.
func TxFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok
}

// RunTransaction executes fn inside a Firestore transaction with retry and
// timeout defaults suited to short read-modify-write cycles.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	options := txOptions{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	client, err := p.Client(ctx)
	if err != nil {
		return err
	}

	txCtx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	err = client.RunTransaction(txCtx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ContextWithTx(ctx, tx), tx)
	}, firestore.MaxAttempts(options.attempts))
	return WrapError("firestore.RunTransaction", err)
}

// RunInTx implements repositories.UnitOfWork. The callback's context carries
// the transaction handle, so repository calls made through it are atomic.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}
