package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-track/ingestion/internal/config"
	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/rules"
)

type RedisStore struct {
	client    *redis.Client
	dedupTTL  time.Duration
	mirrorTTL time.Duration
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		dedupTTL:  time.Duration(cfg.NotifyDedupSeconds) * time.Second,
		mirrorTTL: 30 * time.Second,
	}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// MirrorAssetState pushes the asset's last-known state to the live cache:
// a hash for dashboard reads, a geo index per account, and a pub/sub fanout
// for streaming consumers.
func (r *RedisStore) MirrorAssetState(ctx context.Context, asset *domain.Asset, ev *domain.Event) error {
	stateData := map[string]interface{}{
		"account_id":    asset.AccountID,
		"asset_id":      asset.AssetID,
		"lat":           asset.LastValidLatitude,
		"lng":           asset.LastValidLongitude,
		"gps_timestamp": asset.LastGPSTimestamp,
		"odometer_km":   asset.OdometerWithOffsetKM(),
		"battery":       asset.LastBatteryLevel,
		"fuel":          asset.LastFuelLevel,
		"corridor":      asset.ActiveCorridor,
		"speed_kph":     ev.SpeedKPH,
		"status_code":   int64(ev.StatusCode),
		"timestamp":     ev.Timestamp,
		"received_at":   ev.ReceivedAt.Unix(),
	}
	if on, known := asset.IgnitionOn(ev.InputMask); known {
		stateData["ignition"] = on
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("asset:%s:state", asset.AssetID)
	geoKey := fmt.Sprintf("account:%s:geo", asset.AccountID)
	pubChannel := fmt.Sprintf("account:%s:telemetry", asset.AccountID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, r.mirrorTTL)
	if asset.LastValidLocation().Valid() {
		pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      asset.AssetID,
			Longitude: asset.LastValidLongitude,
			Latitude:  asset.LastValidLatitude,
		})
	}
	pipe.Publish(ctx, pubChannel, pubPayload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// LookupAPIKey resolves an API key to its "account/asset" binding, empty
// if unknown.
func (r *RedisStore) LookupAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("asset:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// CheckNotifyDedup implements rules.Deduper.
func (r *RedisStore) CheckNotifyDedup(ctx context.Context, accountID, assetID, rule string) (bool, error) {
	key := fmt.Sprintf("notify:%s:%s:%s", accountID, assetID, rule)
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check failed: %w", err)
	}
	return count > 0, nil
}

// SetNotifyDedup implements rules.Deduper.
func (r *RedisStore) SetNotifyDedup(ctx context.Context, accountID, assetID, rule string) error {
	key := fmt.Sprintf("notify:%s:%s:%s", accountID, assetID, rule)
	return r.client.Set(ctx, key, "1", r.dedupTTL).Err()
}

// RecordNotification implements rules.NotificationSink by publishing the
// notification to streaming consumers.
func (r *RedisStore) RecordNotification(ctx context.Context, n *rules.Notification) error {
	return r.PublishNotification(ctx, n)
}

// PublishNotification fans a fired notification out to streaming consumers.
func (r *RedisStore) PublishNotification(ctx context.Context, n *rules.Notification) error {
	payload, err := json.Marshal(map[string]interface{}{
		"id":           n.ID,
		"account_id":   n.AccountID,
		"asset_id":     n.AssetID,
		"rule":         n.Rule,
		"severity":     string(n.Severity),
		"value":        n.Value,
		"status_code":  int64(n.StatusCode),
		"timestamp":    n.Timestamp,
		"triggered_at": n.TriggeredAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	channel := fmt.Sprintf("account:%s:notifications", n.AccountID)
	return r.client.Publish(ctx, channel, payload).Err()
}
