package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/trip-dispatch/internal/models"
)

// PostgresStore persists trips in a single table. Conditional updates are
// plain UPDATE ... WHERE status = $expected, so the CAS guarantee comes
// from the database rather than from any in-process lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateTrip(ctx context.Context, t *models.Trip) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trips(
			id, client_id, driver_id,
			pickup_lat, pickup_lon, pickup_address,
			dest_lat, dest_lon, dest_address,
			distance_km, amount, status, rejected_by,
			offered_at, created_at, updated_at
		) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		t.ID, t.ClientID, t.DriverID,
		t.Pickup.Coord.Lat, t.Pickup.Coord.Lon, t.Pickup.Address,
		t.Destination.Coord.Lat, t.Destination.Coord.Lon, t.Destination.Address,
		t.DistanceKm, t.Amount, string(t.Status), pq.Array(t.RejectedBy),
		t.OfferedAt, t.CreatedAt, t.UpdatedAt)
	return err
}

func (p *PostgresStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, client_id, driver_id,
		       pickup_lat, pickup_lon, pickup_address,
		       dest_lat, dest_lon, dest_address,
		       distance_km, amount, status, rejected_by,
		       driver_lat, driver_lon,
		       offered_at, created_at, updated_at
		FROM trips WHERE id = $1`, id)

	var t models.Trip
	var status string
	var rejected pq.StringArray
	var driverLat, driverLon sql.NullFloat64
	err := row.Scan(&t.ID, &t.ClientID, &t.DriverID,
		&t.Pickup.Coord.Lat, &t.Pickup.Coord.Lon, &t.Pickup.Address,
		&t.Destination.Coord.Lat, &t.Destination.Coord.Lon, &t.Destination.Address,
		&t.DistanceKm, &t.Amount, &status, &rejected,
		&driverLat, &driverLon,
		&t.OfferedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Status = models.TripStatus(status)
	t.RejectedBy = []string(rejected)
	if driverLat.Valid && driverLon.Valid {
		t.DriverLocation = &models.Coord{Lat: driverLat.Float64, Lon: driverLon.Float64}
	}
	return &t, nil
}

func (p *PostgresStore) TransitionStatus(ctx context.Context, id string, from, to models.TripStatus, driverID string) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE trips SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND driver_id = $5`,
		string(to), time.Now(), id, string(from), driverID)
	if err != nil {
		return false, err
	}
	return p.applied(ctx, res, id)
}

func (p *PostgresStore) Reassign(ctx context.Context, id, prevDriver, nextDriver string, rejected []string) (bool, error) {
	now := time.Now()
	res, err := p.db.ExecContext(ctx, `
		UPDATE trips SET driver_id = $1, rejected_by = $2,
		       driver_lat = NULL, driver_lon = NULL,
		       offered_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5 AND driver_id = $6`,
		nextDriver, pq.Array(rejected), now, id, string(models.StatusPending), prevDriver)
	if err != nil {
		return false, err
	}
	return p.applied(ctx, res, id)
}

func (p *PostgresStore) Settle(ctx context.Context, id string, from, to models.TripStatus, amount float64) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE trips SET status = $1, amount = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(to), amount, time.Now(), id, string(from))
	if err != nil {
		return false, err
	}
	return p.applied(ctx, res, id)
}

func (p *PostgresStore) SetDriverLocation(ctx context.Context, id string, loc models.Coord) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE trips SET driver_lat = $1, driver_lon = $2, updated_at = $3
		WHERE id = $4 AND status IN ($5, $6)`,
		loc.Lat, loc.Lon, time.Now(), id,
		string(models.StatusHeadingToPickup), string(models.StatusPickedUp))
	if err != nil {
		return false, err
	}
	return p.applied(ctx, res, id)
}

func (p *PostgresStore) ListOfferedBefore(ctx context.Context, cutoff time.Time) ([]*models.Trip, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id FROM trips
		WHERE status = $1 AND driver_id <> '' AND offered_at < $2`,
		string(models.StatusPending), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*models.Trip, 0, len(ids))
	for _, id := range ids {
		t, err := p.GetTrip(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// applied distinguishes "condition failed" from "row missing" so callers
// can report conflict vs not-found.
func (p *PostgresStore) applied(ctx context.Context, res sql.Result, id string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	var exists bool
	if err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM trips WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
