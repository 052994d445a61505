package posts

import (
	"context"
	"log/slog"
	"sort"

	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
	"Commons/internal/core/live"
)

// ListSnapshot is one complete emission of the post list, newest first.
// Err is set when the store failed to evaluate the list; Items is then nil.
type ListSnapshot struct {
	Err   error
	Items []ListItem
}

// ListFeed is a live post list; Close must be called to release it
type ListFeed = *live.Feed[ListSnapshot]

// ListProjection maintains the live post list.
// There is no pagination: every change re-delivers the whole collection.
type ListProjection struct {
	store         docstore.Store
	logger        *slog.Logger
	previewLength int
}

// NewListProjection creates a list projection over store
func NewListProjection(store docstore.Store, logger *slog.Logger) *ListProjection {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListProjection{
		store:         store,
		logger:        logger,
		previewLength: DefaultPreviewLength,
	}
}

// Subscribe opens an independent live feed of the post list.
// The feed closes when ctx is cancelled or Close is called, releasing the
// underlying store subscription.
func (p *ListProjection) Subscribe(ctx context.Context) (ListFeed, error) {
	src, err := p.store.Subscribe(ctx, Newest())
	if err != nil {
		return nil, errs.Unavailable("subscribe posts", err)
	}

	out := live.New[ListSnapshot](ctx)
	out.OnClose(func() { _ = src.Close() })

	go func() {
		defer func() { _ = out.Close() }()
		for {
			select {
			case rs, ok := <-src.Updates():
				if !ok {
					return
				}
				out.Publish(p.project(rs))
			case <-out.Done():
				return
			}
		}
	}()

	p.logger.Debug("post list feed opened")
	return out, nil
}

// List evaluates the post list once
func (p *ListProjection) List(ctx context.Context) (ListSnapshot, error) {
	docs, err := p.store.Query(ctx, Newest())
	if err != nil {
		return ListSnapshot{}, errs.Unavailable("list posts", err)
	}
	return p.project(docstore.ResultSet{Docs: docs}), nil
}

func (p *ListProjection) project(rs docstore.ResultSet) ListSnapshot {
	if rs.Err != nil {
		p.logger.Warn("post list query failed", slog.String("error", rs.Err.Error()))
		return ListSnapshot{Err: errs.Unavailable("list posts", rs.Err)}
	}

	items := make([]ListItem, 0, len(rs.Docs))
	for _, doc := range rs.Docs {
		items = append(items, FromDoc(doc).ToListItem(p.previewLength))
	}

	// Newest first by parsed createdAt; stable, so ties keep the store's order.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	return ListSnapshot{Items: items}
}
