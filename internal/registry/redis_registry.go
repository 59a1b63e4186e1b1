package registry

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/trip-dispatch/internal/models"
)

// Redis implements Registry on Redis GEO plus per-driver metadata hashes.
// Reservations are SETNX locks so two concurrent assignments cannot both
// take the same driver.
type Redis struct {
	client    *redis.Client
	geoKey    string
	staleness time.Duration
}

// reserveTTL bounds how long a leaked reservation can shadow a driver if a
// process dies between Reserve and Release.
const reserveTTL = 2 * time.Hour

func NewRedis(addr, password, geoKey string, staleness time.Duration) *Redis {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Redis{client: c, geoKey: geoKey, staleness: staleness}
}

func NewRedisWithClient(c *redis.Client, geoKey string, staleness time.Duration) *Redis {
	return &Redis{client: c, geoKey: geoKey, staleness: staleness}
}

func (r *Redis) Register(ctx context.Context, driverID string) error {
	return r.client.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"active":    "true",
		"available": "false",
	}).Err()
}

func (r *Redis) Deactivate(ctx context.Context, driverID string) error {
	n, err := r.client.Exists(ctx, metaKey(driverID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.client.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"active":    "false",
		"available": "false",
	}).Err()
}

func (r *Redis) SetAvailability(ctx context.Context, driverID string, available bool) error {
	n, err := r.client.Exists(ctx, metaKey(driverID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return r.client.HSet(ctx, metaKey(driverID), "available", strconv.FormatBool(available)).Err()
}

func (r *Redis) ReportLocation(ctx context.Context, driverID string, loc models.Coord) error {
	if err := r.client.GeoAdd(ctx, r.geoKey, &redis.GeoLocation{
		Longitude: loc.Lon,
		Latitude:  loc.Lat,
		Name:      driverID,
	}).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(driverID), map[string]interface{}{
		"active":  "true",
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *Redis) ListAvailable(ctx context.Context) ([]models.DriverSnapshot, error) {
	ids, err := r.client.ZRange(ctx, r.geoKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pos, err := r.client.GeoPos(ctx, r.geoKey, ids...).Result()
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-r.staleness)
	out := make([]models.DriverSnapshot, 0, len(ids))
	for i, id := range ids {
		if i >= len(pos) || pos[i] == nil {
			continue
		}
		meta, err := r.client.HGetAll(ctx, metaKey(id)).Result()
		if err != nil {
			continue
		}
		if meta["active"] != "true" || meta["available"] != "true" {
			continue
		}
		if r.staleness > 0 {
			ts, err := time.Parse(time.RFC3339, meta["updated"])
			if err != nil || ts.Before(cutoff) {
				continue
			}
		}
		if busy, err := r.client.Exists(ctx, busyKey(id)).Result(); err != nil || busy > 0 {
			continue
		}
		out = append(out, models.DriverSnapshot{
			ID:  id,
			Loc: models.Coord{Lat: pos[i].Latitude, Lon: pos[i].Longitude},
		})
	}
	return out, nil
}

func (r *Redis) Reserve(ctx context.Context, driverID string) (bool, error) {
	return r.client.SetNX(ctx, busyKey(driverID), "1", reserveTTL).Result()
}

func (r *Redis) Release(ctx context.Context, driverID string) error {
	return r.client.Del(ctx, busyKey(driverID)).Err()
}

func metaKey(id string) string { return "driver:meta:" + id }
func busyKey(id string) string { return "driver:busy:" + id }
