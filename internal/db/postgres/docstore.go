package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"Commons/internal/core/docstore"
	"Commons/internal/core/live"
)

// ChangeChannel is the NOTIFY channel the documents trigger publishes on;
// the payload is the touched collection
const ChangeChannel = "document_changes"

const (
	defaultRefreshTimeout = 10 * time.Second
	listenerPingInterval  = 90 * time.Second
)

type watcher struct {
	feed  docstore.Subscription
	query docstore.Query
}

// DocumentStore implements docstore.Store on a single JSONB table.
//
// Live queries are driven by LISTEN/NOTIFY: a trigger announces each written
// collection and every subscription on it is re-evaluated. All publishing happens
// on one goroutine, so each subscription sees its results in evaluation order.
type DocumentStore struct {
	db             *sql.DB
	listener       *pq.Listener
	notify         <-chan *pq.Notification
	watchers       map[*watcher]struct{}
	initial        chan *watcher
	done           chan struct{}
	logger         *slog.Logger
	refreshTimeout time.Duration
	mu             sync.Mutex
	closeOnce      sync.Once
}

// NewDocumentStore creates a store on db and starts listening for changes.
// dsn must point at the same database; pq.Listener needs its own connection.
func NewDocumentStore(db *sql.DB, dsn string, logger *slog.Logger) (*DocumentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventDisconnected:
			logger.Warn("[PGSTORE] change listener disconnected", slog.Any("error", err))
		case pq.ListenerEventReconnected:
			logger.Info("[PGSTORE] change listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("[PGSTORE] change listener connection attempt failed", slog.Any("error", err))
		}
	})
	if err := listener.Listen(ChangeChannel); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", ChangeChannel, err)
	}

	s := &DocumentStore{
		db:             db,
		listener:       listener,
		notify:         listener.Notify,
		watchers:       make(map[*watcher]struct{}),
		initial:        make(chan *watcher),
		done:           make(chan struct{}),
		logger:         logger,
		refreshTimeout: defaultRefreshTimeout,
	}
	go s.run()
	return s, nil
}

// Create inserts a new document under a generated id
func (s *DocumentStore) Create(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3)`,
		collection, id, raw)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Put writes the full document at id
func (s *DocumentStore) Put(ctx context.Context, collection, id string, fields docstore.Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	query := `
		INSERT INTO documents (collection, id, fields)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields
	`
	if _, err := s.db.ExecContext(ctx, query, collection, id, raw); err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Update merges fields into an existing document
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET fields = fields || $3::jsonb WHERE collection = $1 AND id = $2`,
		collection, id, raw)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return requireRow(result)
}

// Get reads one document
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*docstore.Doc, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, err
	}
	return &docstore.Doc{ID: id, Fields: fields}, nil
}

// Query evaluates q once
func (s *DocumentStore) Query(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	query, args := buildSelect(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("[PGSTORE] failed to close rows", slog.Any("error", closeErr))
		}
	}()

	var docs []docstore.Doc
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, docstore.Doc{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// Subscribe opens a live query. The initial evaluation runs on the publishing
// goroutine like every later refresh.
func (s *DocumentStore) Subscribe(ctx context.Context, q docstore.Query) (docstore.Subscription, error) {
	w := &watcher{feed: live.New[docstore.ResultSet](ctx), query: q}

	s.mu.Lock()
	s.watchers[w] = struct{}{}
	s.mu.Unlock()

	w.feed.OnClose(func() {
		s.mu.Lock()
		delete(s.watchers, w)
		s.mu.Unlock()
	})

	select {
	case s.initial <- w:
		return w.feed, nil
	case <-s.done:
		_ = w.feed.Close()
		return nil, docstore.ErrClosed
	case <-ctx.Done():
		_ = w.feed.Close()
		return nil, ctx.Err()
	}
}

// Increment adds delta to a numeric field in one UPDATE; the row lock makes the
// read of the old value and the write of the new one indivisible
func (s *DocumentStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	query := `
		UPDATE documents
		SET fields = jsonb_set(
			fields,
			ARRAY[$3::text],
			to_jsonb(COALESCE((fields->>$3::text)::bigint, 0) + $4::bigint),
			true
		)
		WHERE collection = $1 AND id = $2
	`
	result, err := s.db.ExecContext(ctx, query, collection, id, field, delta)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	return requireRow(result)
}

// Delete removes a document
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Close stops the listener and closes every open subscription.
// The *sql.DB is owned by the caller and left open.
func (s *DocumentStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.listener.Close()

		s.mu.Lock()
		feeds := make([]docstore.Subscription, 0, len(s.watchers))
		for w := range s.watchers {
			feeds = append(feeds, w.feed)
		}
		s.mu.Unlock()

		for _, f := range feeds {
			_ = f.Close()
		}
	})
	return err
}

// run is the single publishing goroutine
func (s *DocumentStore) run() {
	ping := time.NewTicker(listenerPingInterval)
	defer ping.Stop()

	for {
		select {
		case w := <-s.initial:
			s.publish(w)

		case n, ok := <-s.notify:
			// Closed by listener.Close; done is closed too
			if !ok {
				return
			}
			// nil means the connection was re-established; changes may have been missed
			if n == nil {
				s.refresh(nil)
				continue
			}
			s.refresh(s.drain(n))

		case <-ping.C:
			go func() {
				if err := s.listener.Ping(); err != nil {
					s.logger.Warn("[PGSTORE] change listener ping failed", slog.Any("error", err))
				}
			}()

		case <-s.done:
			return
		}
	}
}

// drain collects the collections of n and of any notifications already queued,
// so a burst of writes costs one refresh per collection.
// A nil result means refresh everything.
func (s *DocumentStore) drain(n *pq.Notification) map[string]struct{} {
	collections := map[string]struct{}{n.Extra: {}}
	for {
		select {
		case next, ok := <-s.notify:
			if !ok {
				return collections
			}
			if next == nil {
				return nil
			}
			collections[next.Extra] = struct{}{}
		default:
			return collections
		}
	}
}

// refresh re-evaluates the subscriptions on collections (all if nil)
func (s *DocumentStore) refresh(collections map[string]struct{}) {
	s.mu.Lock()
	targets := make([]*watcher, 0, len(s.watchers))
	for w := range s.watchers {
		if collections == nil {
			targets = append(targets, w)
			continue
		}
		if _, ok := collections[w.query.Collection]; ok {
			targets = append(targets, w)
		}
	}
	s.mu.Unlock()

	for _, w := range targets {
		s.publish(w)
	}
}

func (s *DocumentStore) publish(w *watcher) {
	if w.feed.Closed() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.refreshTimeout)
	defer cancel()

	docs, err := s.Query(ctx, w.query)
	if err != nil {
		s.logger.Warn("[PGSTORE] live query failed",
			slog.String("collection", w.query.Collection),
			slog.Any("error", err))
		w.feed.Publish(docstore.ResultSet{Err: err})
		return
	}
	w.feed.Publish(docstore.ResultSet{Docs: docs})
}

// buildSelect renders q as SQL. Field names are bound as parameters, never
// interpolated. Ties in the requested order fall back to insertion order.
func buildSelect(q docstore.Query) (string, []interface{}) {
	var sb strings.Builder
	args := []interface{}{q.Collection}
	sb.WriteString("SELECT id, fields FROM documents WHERE collection = $1")

	if q.DocID != "" {
		args = append(args, q.DocID)
		sb.WriteString(" AND id = $" + strconv.Itoa(len(args)))
	}
	if q.Where != nil {
		args = append(args, q.Where.Field, q.Where.Equals)
		sb.WriteString(" AND fields->>$" + strconv.Itoa(len(args)-1) + "::text = $" + strconv.Itoa(len(args)) + "::text")
	}

	sb.WriteString(" ORDER BY ")
	if q.OrderBy != nil {
		args = append(args, q.OrderBy.Field)
		sb.WriteString("fields->$" + strconv.Itoa(len(args)) + "::text")
		if q.OrderBy.Desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
		sb.WriteString(", ")
	}
	sb.WriteString("seq ASC")

	return sb.String(), args
}

func decodeFields(raw []byte) (docstore.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	fields := docstore.Fields{}
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return fields, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}
