package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"homescore/internal/errs"
	"homescore/internal/geo"
	"homescore/internal/model"
)

// Postgres is a Repository backed by PostgreSQL. Listings are stored as a
// JSON document next to the columns used for filtering.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens dsn, waits for the server and applies the schema.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "postgres: open")
	}
	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "postgres: ping failed after retries")
	}
	pg := &Postgres{db: db}
	if err := pg.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "postgres: migrate")
	}
	return pg, nil
}

func (pg *Postgres) migrate(ctx context.Context) error {
	_, err := pg.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id         TEXT PRIMARY KEY,
			status     TEXT             NOT NULL DEFAULT '',
			lat        DOUBLE PRECISION,
			lon        DOUBLE PRECISION,
			updated_at TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			doc        JSONB            NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
		CREATE INDEX IF NOT EXISTS idx_listings_latlon ON listings(lat, lon);

		CREATE TABLE IF NOT EXISTS interactions (
			id            BIGSERIAL PRIMARY KEY,
			client_id     TEXT             NOT NULL,
			listing_id    TEXT             NOT NULL,
			action        TEXT             NOT NULL,
			dwell_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			at            TIMESTAMPTZ      NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_interactions_client ON interactions(client_id, at);
		CREATE UNIQUE INDEX IF NOT EXISTS uq_interactions_event
			ON interactions(client_id, listing_id, action, at);
	`)
	return err
}

func (pg *Postgres) Close() error { return pg.db.Close() }

func (pg *Postgres) SaveListing(ctx context.Context, l model.Listing) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return errors.Wrapf(err, "encode listing %s", l.ID)
	}
	var lat, lon sql.NullFloat64
	if l.Location != nil {
		lat = sql.NullFloat64{Float64: l.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: l.Location.Lon, Valid: true}
	}
	_, err = pg.db.ExecContext(ctx, `
		INSERT INTO listings (id, status, lat, lon, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
		    updated_at = EXCLUDED.updated_at, doc = EXCLUDED.doc`,
		l.ID, string(l.Status), lat, lon, updatedAt(l), doc)
	return errors.Wrapf(err, "save listing %s", l.ID)
}

func (pg *Postgres) AppendInteraction(ctx context.Context, it model.Interaction) error {
	_, err := pg.db.ExecContext(ctx, `
		INSERT INTO interactions (client_id, listing_id, action, dwell_seconds, at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (client_id, listing_id, action, at) DO NOTHING`,
		it.ClientID, it.ListingID, string(it.Action), it.DwellSeconds, it.At)
	return errors.Wrapf(err, "append interaction for %s", it.ClientID)
}

func (pg *Postgres) GetListing(ctx context.Context, id string) (model.Listing, error) {
	var doc []byte
	err := pg.db.QueryRowContext(ctx, `SELECT doc FROM listings WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Listing{}, &errs.NotFoundError{Kind: "listing", ID: id}
	}
	if err != nil {
		return model.Listing{}, errors.Wrapf(err, "get listing %s", id)
	}
	var l model.Listing
	if err := json.Unmarshal(doc, &l); err != nil {
		return model.Listing{}, errors.Wrapf(err, "decode listing %s", id)
	}
	return l, nil
}

// ListListingsNear prefilters on a lat/lon bounding box in SQL and applies
// the exact haversine radius in Go.
func (pg *Postgres) ListListingsNear(ctx context.Context, p model.Point, radiusMiles float64, statuses []model.Status) ([]model.Listing, error) {
	box := geo.BoundingBox(p, radiusMiles)
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := pg.db.QueryContext(ctx, `
		SELECT doc FROM listings
		WHERE lat BETWEEN $1 AND $2 AND lon BETWEEN $3 AND $4
		  AND (cardinality($5::text[]) = 0 OR status = ANY($5))
		ORDER BY id`,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon, pq.Array(names))
	if err != nil {
		return nil, errors.Wrap(err, "list listings near")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, errors.Wrap(err, "scan listing")
		}
		var l model.Listing
		if err := json.Unmarshal(doc, &l); err != nil {
			return nil, errors.Wrap(err, "decode listing")
		}
		if l.Location == nil || geo.DistanceMiles(p, *l.Location) > radiusMiles {
			continue
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (pg *Postgres) ListInteractions(ctx context.Context, clientID string) ([]model.Interaction, error) {
	rows, err := pg.db.QueryContext(ctx, `
		SELECT client_id, listing_id, action, dwell_seconds, at
		FROM interactions WHERE client_id = $1
		ORDER BY at, id`, clientID)
	if err != nil {
		return nil, errors.Wrapf(err, "list interactions for %s", clientID)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var it model.Interaction
		var action string
		if err := rows.Scan(&it.ClientID, &it.ListingID, &action, &it.DwellSeconds, &it.At); err != nil {
			return nil, errors.Wrap(err, "scan interaction")
		}
		it.Action = model.Action(action)
		it.At = it.At.UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}

// ClientIDs lists every client with recorded interactions.
func (pg *Postgres) ClientIDs(ctx context.Context) ([]string, error) {
	rows, err := pg.db.QueryContext(ctx, `SELECT DISTINCT client_id FROM interactions ORDER BY client_id`)
	if err != nil {
		return nil, errors.Wrap(err, "list clients")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan client id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func updatedAt(l model.Listing) time.Time {
	if l.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return l.UpdatedAt
}
