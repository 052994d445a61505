// Package memory is an in-process document store. It backs tests and the
// STORE_BACKEND=memory development mode; every mutation is serialized under one
// lock, which is what makes Increment atomic here.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"Commons/internal/core/docstore"
	"Commons/internal/core/live"
)

type entry struct {
	fields docstore.Fields
	seq    uint64
}

type watcher struct {
	feed  docstore.Subscription
	query docstore.Query
}

// Store implements docstore.Store in memory
type Store struct {
	collections map[string]map[string]*entry
	watchers    map[*watcher]struct{}
	newID       func() string
	logger      *slog.Logger
	seq         uint64
	mu          sync.Mutex
	closed      bool
}

// Option configures a Store
type Option func(*Store)

// WithIDGenerator overrides the default uuid document ids
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger used for subscription diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		collections: make(map[string]map[string]*entry),
		watchers:    make(map[*watcher]struct{}),
		newID:       uuid.NewString,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new document under a generated id
func (s *Store) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", docstore.ErrClosed
	}

	id := s.newID()
	if _, exists := s.collection(collection)[id]; exists {
		return "", fmt.Errorf("document id collision: %s/%s", collection, id)
	}
	s.write(collection, id, fields.Clone())
	return id, nil
}

// Put replaces the document at id
func (s *Store) Put(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}

	s.write(collection, id, fields.Clone())
	return nil
}

// Update merges fields into an existing document
func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}

	existing, ok := s.collection(collection)[id]
	if !ok {
		return docstore.ErrNotFound
	}
	merged := existing.fields.Clone()
	for k, v := range fields {
		merged[k] = v
	}
	existing.fields = merged
	s.notify(collection)
	return nil
}

// Get returns a copy of the document at id
func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}

	e, ok := s.collection(collection)[id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return &docstore.Doc{ID: id, Fields: e.fields.Clone()}, nil
}

// Query evaluates q against the current state
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	return s.evaluate(q), nil
}

// Subscribe opens a live query; the current result is published immediately
func (s *Store) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	w := &watcher{feed: live.New[docstore.ResultSet](ctx), query: q}
	s.watchers[w] = struct{}{}
	w.feed.Publish(docstore.ResultSet{Docs: s.evaluate(q)})
	s.mu.Unlock()

	// Registered without holding mu: the hook runs inline if the feed already closed.
	w.feed.OnClose(func() {
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
	})

	s.logger.Debug("memory store subscription opened", slog.String("collection", q.Collection))
	return w.feed, nil
}

// Increment adds delta to a numeric field under the store lock
func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}

	e, ok := s.collection(collection)[id]
	if !ok {
		return docstore.ErrNotFound
	}
	updated := e.fields.Clone()
	updated[field] = e.fields.Int(field) + delta
	e.fields = updated
	s.notify(collection)
	return nil
}

// Delete removes the document at id
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}

	docs := s.collection(collection)
	if _, ok := docs[id]; !ok {
		return nil
	}
	delete(docs, id)
	s.notify(collection)
	return nil
}

// Watchers returns the number of open subscriptions
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Close closes every open subscription and rejects further calls
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	feeds := make([]docstore.Subscription, 0, len(s.watchers))
	for w := range s.watchers {
		feeds = append(feeds, w.feed)
	}
	s.mu.Unlock()

	for _, f := range feeds {
		_ = f.Close()
	}
	return nil
}

// collection returns the documents of name, creating the map on first use.
// Caller must hold mu.
func (s *Store) collection(name string) map[string]*entry {
	docs, ok := s.collections[name]
	if !ok {
		docs = make(map[string]*entry)
		s.collections[name] = docs
	}
	return docs
}

// write stores fields at id, keeping the original insertion sequence on overwrite.
// Caller must hold mu.
func (s *Store) write(collection, id string, fields docstore.Fields) {
	docs := s.collection(collection)
	if existing, ok := docs[id]; ok {
		existing.fields = fields
	} else {
		s.seq++
		docs[id] = &entry{fields: fields, seq: s.seq}
	}
	s.notify(collection)
}

// evaluate runs q. Documents start in insertion order; the stable sort keeps that
// order among equal keys. Caller must hold mu.
func (s *Store) evaluate(q docstore.Query) []docstore.Doc {
	docs := s.collections[q.Collection]
	matched := make([]docstore.Doc, 0, len(docs))
	seqs := make(map[string]uint64, len(docs))
	for id, e := range docs {
		doc := docstore.Doc{ID: id, Fields: e.fields.Clone()}
		if q.Matches(q.Collection, doc) {
			matched = append(matched, doc)
			seqs[id] = e.seq
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return seqs[matched[i].ID] < seqs[matched[j].ID]
	})
	q.Sort(matched)
	return matched
}

// notify republishes every live query on collection. Publish never blocks, so this
// is safe under mu. Caller must hold mu.
func (s *Store) notify(collection string) {
	for w := range s.watchers {
		if w.query.Collection != collection {
			continue
		}
		w.feed.Publish(docstore.ResultSet{Docs: s.evaluate(w.query)})
	}
}
