package docstore

import (
	"context"
	"errors"

	"Commons/internal/core/live"
)

// Sentinel errors returned by Store implementations
var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")

	// ErrClosed is returned by a store that has been shut down
	ErrClosed = errors.New("document store closed")
)

// Doc is a single document: a store-assigned id plus its fields
type Doc struct {
	Fields Fields `json:"fields"`
	ID     string `json:"id"`
}

// Filter restricts a query to documents whose field equals a string value
type Filter struct {
	Field  string
	Equals string
}

// Order sorts a query by a single field
type Order struct {
	Field string
	Desc  bool
}

// Query describes a (possibly live) read against one collection.
// When DocID is set the result holds at most one document.
type Query struct {
	Where      *Filter
	OrderBy    *Order
	Collection string
	DocID      string
}

// ResultSet is one complete emission of a live query.
// Err is set when the store could not evaluate the query; Docs is then nil.
type ResultSet struct {
	Err  error
	Docs []Doc
}

// Subscription is a live query handle. Close must be called to release it.
type Subscription = *live.Feed[ResultSet]

// Store is the document database the application is built on.
// Implementations must make Increment a single atomic server-side operation.
type Store interface {
	// Create writes a new document and returns its store-assigned id
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Put writes the full document at id, replacing any existing fields
	Put(ctx context.Context, collection, id string, fields Fields) error

	// Update merges fields into an existing document
	// Returns ErrNotFound if the document does not exist
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Get reads one document; returns ErrNotFound if it does not exist
	Get(ctx context.Context, collection, id string) (*Doc, error)

	// Query evaluates q once
	Query(ctx context.Context, q Query) ([]Doc, error)

	// Subscribe opens a live query. The first ResultSet reflects the current state;
	// a new complete ResultSet follows every change to the collection.
	// The subscription closes when ctx is cancelled or Close is called.
	Subscribe(ctx context.Context, q Query) (Subscription, error)

	// Increment atomically adds delta to a numeric field (missing counts as zero)
	// Returns ErrNotFound if the document does not exist
	Increment(ctx context.Context, collection, id, field string, delta int64) error

	// Delete removes a document; deleting a missing document is not an error
	Delete(ctx context.Context, collection, id string) error
}
