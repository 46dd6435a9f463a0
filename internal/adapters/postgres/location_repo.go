package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/trailmap/internal/core/domain"
)

const upsertLocationSQL = `
	INSERT INTO locations (id, type, name, description, operator, address, phone, waiting_time, location, created_by)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8,
	        ST_SetSRID(ST_MakePoint($9, $10), 4326)::geography, NULLIF($11, ''))
	ON CONFLICT (id) DO UPDATE
	SET type = EXCLUDED.type, name = EXCLUDED.name, description = EXCLUDED.description,
	    operator = EXCLUDED.operator, address = EXCLUDED.address, phone = EXCLUDED.phone,
	    waiting_time = EXCLUDED.waiting_time, location = EXCLUDED.location,
	    updated_at = now()
	RETURNING created_at, updated_at
`

// LocationRepo implements ports.LocationRepository with pgx.
type LocationRepo struct {
	db *DB
}

// NewLocationRepo creates a new LocationRepo.
func NewLocationRepo(db *DB) *LocationRepo {
	return &LocationRepo{db: db}
}

// Upsert inserts or updates a single location and fills its timestamps.
func (r *LocationRepo) Upsert(ctx context.Context, l *domain.Location) error {
	return r.db.Pool.QueryRow(ctx, upsertLocationSQL,
		l.ID, string(l.Type), l.Name, l.Description, l.Operator, l.Address, l.Phone,
		l.WaitingTime, l.Position.Lon, l.Position.Lat, l.CreatedBy,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
}

// UpsertBatch inserts many locations using pgx.Batch.
func (r *LocationRepo) UpsertBatch(ctx context.Context, locs []domain.Location) error {
	batch := &pgx.Batch{}
	for _, l := range locs {
		batch.Queue(upsertLocationSQL,
			l.ID, string(l.Type), l.Name, l.Description, l.Operator, l.Address, l.Phone,
			l.WaitingTime, l.Position.Lon, l.Position.Lat, l.CreatedBy,
		)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range locs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a location by id.
func (r *LocationRepo) GetByID(ctx context.Context, id string) (*domain.Location, error) {
	var l domain.Location
	var typ string
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, type, name,
		       COALESCE(description, ''), COALESCE(operator, ''), COALESCE(address, ''), COALESCE(phone, ''),
		       waiting_time,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon,
		       COALESCE(created_by, ''), created_at, updated_at
		FROM locations WHERE id = $1
	`, id).Scan(
		&l.ID, &typ, &l.Name,
		&l.Description, &l.Operator, &l.Address, &l.Phone,
		&l.WaitingTime,
		&l.Position.Lat, &l.Position.Lon,
		&l.CreatedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	l.Type = domain.LocationType(typ)
	return &l, nil
}

// FindInBounds returns the markers inside bounds using the GiST index.
func (r *LocationRepo) FindInBounds(ctx context.Context, b domain.MapBounds, limit int) ([]domain.LocationMarker, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, type, name, COALESCE(phone, ''), waiting_time,
		       ST_Y(location::geometry) AS lat,
		       ST_X(location::geometry) AS lon
		FROM locations
		WHERE location && ST_MakeEnvelope($1, $2, $3, $4, 4326)::geography
		ORDER BY id
		LIMIT $5
	`, b.SouthWest.Lon, b.SouthWest.Lat, b.NorthEast.Lon, b.NorthEast.Lat, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	markers := make([]domain.LocationMarker, 0)
	for rows.Next() {
		var m domain.LocationMarker
		var typ string
		if err := rows.Scan(&m.ID, &typ, &m.Name, &m.Phone, &m.WaitingTime, &m.Position.Lat, &m.Position.Lon); err != nil {
			return nil, err
		}
		m.Type = domain.LocationType(typ)
		markers = append(markers, m)
	}
	return markers, rows.Err()
}
