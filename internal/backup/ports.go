// Package backup defines the ports for the off-site record mirror.
package backup

import "context"

// Record is a flattened financial record ready to be mirrored.
type Record struct {
	Collection string
	ID         string
	AccountID  string
	Values     []any
}

// Ports for outbound adapters.
type (
	RecordWriter interface {
		AppendRecord(ctx context.Context, rec Record) (rowRef string, err error)
	}

	RecordDeleter interface {
		DeleteRecord(ctx context.Context, collection, id string) error
	}
)
