// Package events decodes interaction events from the message bus and turns
// a batch of them into preference recomputes.
package events

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"homescore/internal/metrics"
	"homescore/internal/model"
)

// InteractionEvent is the wire form of one client signal.
type InteractionEvent struct {
	ClientID     string    `json:"clientId" validate:"required"`
	ListingID    string    `json:"listingId" validate:"required"`
	Action       string    `json:"action" validate:"required,oneof=like dislike skip dwell"`
	DwellSeconds float64   `json:"dwellSeconds,omitempty" validate:"gte=0"`
	At           time.Time `json:"at" validate:"required"`
}

var validate = validator.New()

// Decode parses and validates one event payload.
func Decode(payload []byte) (model.Interaction, error) {
	var ev InteractionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return model.Interaction{}, errors.Wrap(err, "decode interaction event")
	}
	ev.Action = strings.ToLower(strings.TrimSpace(ev.Action))
	if err := validate.Struct(ev); err != nil {
		return model.Interaction{}, errors.Wrap(err, "invalid interaction event")
	}
	return model.Interaction{
		ClientID:     ev.ClientID,
		ListingID:    ev.ListingID,
		Action:       model.Action(ev.Action),
		DwellSeconds: ev.DwellSeconds,
		At:           ev.At.UTC(),
	}, nil
}

// Encode is the inverse of Decode.
func Encode(it model.Interaction) ([]byte, error) {
	return json.Marshal(InteractionEvent{
		ClientID:     it.ClientID,
		ListingID:    it.ListingID,
		Action:       string(it.Action),
		DwellSeconds: it.DwellSeconds,
		At:           it.At.UTC(),
	})
}

// Appender records an interaction in the history store.
type Appender interface {
	AppendInteraction(ctx context.Context, it model.Interaction) error
}

// Recomputer rebuilds preference vectors for a set of clients.
type Recomputer interface {
	RecomputeAll(ctx context.Context, clientIDs []string) error
}

// Handler appends a batch of events and recomputes each affected client
// once.
type Handler struct {
	store   Appender
	rec     Recomputer
	log     logrus.FieldLogger
	metrics *metrics.Registry
}

func NewHandler(store Appender, rec Recomputer, log logrus.FieldLogger, m *metrics.Registry) *Handler {
	return &Handler{store: store, rec: rec, log: log, metrics: m}
}

// HandleBatch skips malformed payloads and returns the clients recomputed.
// Storage and recompute errors abort the batch so the caller does not
// commit offsets.
func (h *Handler) HandleBatch(ctx context.Context, payloads [][]byte) ([]string, error) {
	seen := make(map[string]struct{})
	for _, p := range payloads {
		it, err := Decode(p)
		if err != nil {
			if h.metrics != nil {
				h.metrics.EventsMalformed.Inc()
			}
			h.log.WithError(err).Warn("skipping malformed interaction event")
			continue
		}
		if err := h.store.AppendInteraction(ctx, it); err != nil {
			return nil, errors.Wrapf(err, "append interaction for %s", it.ClientID)
		}
		if h.metrics != nil {
			h.metrics.EventsConsumed.Inc()
		}
		seen[it.ClientID] = struct{}{}
	}
	clients := make([]string, 0, len(seen))
	for id := range seen {
		clients = append(clients, id)
	}
	sort.Strings(clients)
	if len(clients) == 0 {
		return nil, nil
	}
	if err := h.rec.RecomputeAll(ctx, clients); err != nil {
		return nil, err
	}
	return clients, nil
}
