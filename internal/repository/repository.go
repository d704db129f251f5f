// Package repository is the data-access layer the engines read from.
package repository

import (
	"context"
	"sort"
	"sync"

	"homescore/internal/errs"
	"homescore/internal/geo"
	"homescore/internal/model"
)

// ListingSource supplies listings.
type ListingSource interface {
	// GetListing fails with *errs.NotFoundError when id is unknown.
	GetListing(ctx context.Context, id string) (model.Listing, error)
	// ListListingsNear returns listings within radiusMiles of p whose status
	// is in statuses. An empty statuses slice matches every status.
	ListListingsNear(ctx context.Context, p model.Point, radiusMiles float64, statuses []model.Status) ([]model.Listing, error)
}

// InteractionSource supplies a client's signal history.
type InteractionSource interface {
	// ListInteractions returns the client's interactions oldest first.
	ListInteractions(ctx context.Context, clientID string) ([]model.Interaction, error)
}

// Writer is the ingest side used by operator tooling and the event worker.
type Writer interface {
	SaveListing(ctx context.Context, l model.Listing) error
	AppendInteraction(ctx context.Context, it model.Interaction) error
}

// Repository is the full data-access surface.
type Repository interface {
	ListingSource
	InteractionSource
	Writer
}

// Memory is a thread-safe in-process Repository.
type Memory struct {
	mu           sync.RWMutex
	listings     map[string]model.Listing
	interactions map[string][]model.Interaction
	seen         map[eventKey]struct{}
}

// eventKey identifies a redelivered interaction.
type eventKey struct {
	client, listing string
	action          model.Action
	at              int64
}

func NewMemory() *Memory {
	return &Memory{
		listings:     make(map[string]model.Listing),
		interactions: make(map[string][]model.Interaction),
		seen:         make(map[eventKey]struct{}),
	}
}

func (m *Memory) SaveListing(_ context.Context, l model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
	return nil
}

// AppendInteraction ignores an exact repeat of a stored interaction.
func (m *Memory) AppendInteraction(_ context.Context, it model.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := eventKey{client: it.ClientID, listing: it.ListingID, action: it.Action, at: it.At.UnixNano()}
	if _, dup := m.seen[k]; dup {
		return nil
	}
	m.seen[k] = struct{}{}
	m.interactions[it.ClientID] = append(m.interactions[it.ClientID], it)
	return nil
}

func (m *Memory) GetListing(_ context.Context, id string) (model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok {
		return model.Listing{}, &errs.NotFoundError{Kind: "listing", ID: id}
	}
	return l, nil
}

func (m *Memory) ListListingsNear(_ context.Context, p model.Point, radiusMiles float64, statuses []model.Status) ([]model.Listing, error) {
	want := statusSet(statuses)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Listing
	for _, l := range m.listings {
		if l.Location == nil {
			continue
		}
		if want != nil && !want[l.Status] {
			continue
		}
		if geo.DistanceMiles(p, *l.Location) <= radiusMiles {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListInteractions(_ context.Context, clientID string) ([]model.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := append([]model.Interaction(nil), m.interactions[clientID]...)
	sort.SliceStable(h, func(i, j int) bool { return h[i].At.Before(h[j].At) })
	return h, nil
}

// ClientIDs lists every client with at least one interaction, sorted.
func (m *Memory) ClientIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.interactions))
	for id := range m.interactions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func statusSet(statuses []model.Status) map[model.Status]bool {
	if len(statuses) == 0 {
		return nil
	}
	set := make(map[model.Status]bool, len(statuses))
	for _, s := range statuses {
		set[s] = true
	}
	return set
}
