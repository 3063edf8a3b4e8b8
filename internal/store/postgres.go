package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleet-track/ingestion/internal/config"
	"fleet-track/ingestion/internal/domain"
	"fleet-track/ingestion/internal/rules"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) InsertEvent(ctx context.Context, ev *domain.Event) error {
	query := `
		INSERT INTO asset_events (
			account_id, asset_id, timestamp, status_code,
			latitude, longitude, speed_kph, heading, odometer_km, input_mask,
			battery_level, fuel_level,
			mcc, mnc, cell_id, lac, cell_latitude, cell_longitude,
			geozone_index, geozone_id,
			address, street_address, city, state_province, postal_code, country, subdivision,
			speed_limit_kph, sensor_data, received_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20,
			$21, $22, $23, $24, $25, $26, $27,
			$28, $29, $30
		)
	`
	_, err := s.pool.Exec(ctx, query,
		ev.AccountID, ev.AssetID, ev.Timestamp, int64(ev.StatusCode),
		ev.Latitude, ev.Longitude, ev.SpeedKPH, ev.Heading, ev.OdometerKM, int64(ev.InputMask),
		ev.BatteryLevel, ev.FuelLevel,
		ev.MCC, ev.MNC, ev.CellID, ev.LAC, ev.CellLatitude, ev.CellLongitude,
		ev.GeozoneIndex, ev.GeozoneID,
		ev.Address, ev.StreetAddress, ev.City, ev.StateProvince, ev.PostalCode, ev.Country, ev.Subdivision,
		ev.SpeedLimitKPH, ev.SensorData, ev.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("event insert failed: %w", err)
	}
	return nil
}

// UpdateEventFields performs the single follow-up partial update that
// background enrichment is allowed: only address/cell fields, keyed by the
// event's identity tuple.
func (s *PostgresStore) UpdateEventFields(ctx context.Context, ev *domain.Event, fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	set := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+4)
	for _, f := range fields {
		v, ok := eventFieldValue(ev, f)
		if !ok {
			return fmt.Errorf("event field %q not updatable", f)
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", f, len(args)))
	}
	args = append(args, ev.AccountID, ev.AssetID, ev.Timestamp, int64(ev.StatusCode))

	query := fmt.Sprintf(`
		UPDATE asset_events SET %s
		WHERE account_id = $%d AND asset_id = $%d AND timestamp = $%d AND status_code = $%d
	`, strings.Join(set, ", "), len(args)-3, len(args)-2, len(args)-1, len(args))

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("event partial update failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAssetFields(ctx context.Context, asset *domain.Asset, fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	set := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+2)
	for _, f := range fields {
		v, ok := assetFieldValue(asset, f)
		if !ok {
			return fmt.Errorf("asset field %q not updatable", f)
		}
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", f, len(args)))
	}
	args = append(args, asset.AccountID, asset.AssetID)

	query := fmt.Sprintf(`
		UPDATE assets SET %s
		WHERE account_id = $%d AND asset_id = $%d
	`, strings.Join(set, ", "), len(args)-1, len(args))

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("asset partial update failed: %w", err)
	}
	return nil
}

// PreviousEvent returns the most recent event strictly before the given
// timestamp, optionally filtered by status codes and GPS validity.
func (s *PostgresStore) PreviousEvent(ctx context.Context, accountID, assetID string, before int64, codes []domain.StatusCode, validGPSOnly bool) (*domain.Event, error) {
	query := `
		SELECT timestamp, status_code, latitude, longitude, speed_kph, heading,
		       odometer_km, input_mask, battery_level, fuel_level, address, geozone_id
		FROM asset_events
		WHERE account_id = $1 AND asset_id = $2 AND timestamp < $3
	`
	args := []interface{}{accountID, assetID, before}
	if len(codes) > 0 {
		scs := make([]int64, len(codes))
		for i, c := range codes {
			scs[i] = int64(c)
		}
		args = append(args, scs)
		query += fmt.Sprintf(" AND status_code = ANY($%d)", len(args))
	}
	if validGPSOnly {
		query += " AND latitude != 0 AND longitude != 0"
	}
	query += " ORDER BY timestamp DESC LIMIT 1"

	ev := &domain.Event{AccountID: accountID, AssetID: assetID}
	var sc int64
	var inputMask int64
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&ev.Timestamp, &sc, &ev.Latitude, &ev.Longitude, &ev.SpeedKPH, &ev.Heading,
		&ev.OdometerKM, &inputMask, &ev.BatteryLevel, &ev.FuelLevel, &ev.Address, &ev.GeozoneID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous event query failed: %w", err)
	}
	ev.StatusCode = domain.StatusCode(sc)
	ev.InputMask = uint32(inputMask)
	return ev, nil
}

func (s *PostgresStore) GetAsset(ctx context.Context, accountID, assetID string) (*domain.Asset, error) {
	query := `
		SELECT last_valid_latitude, last_valid_longitude, last_gps_timestamp,
		       last_odometer_km, odometer_offset_km, max_odometer_km,
		       last_battery_level, last_fuel_level, active_corridor,
		       last_notify_time, last_notify_code, notify_selector, allow_notify,
		       ignition_index
		FROM assets
		WHERE account_id = $1 AND asset_id = $2
	`
	a := &domain.Asset{AccountID: accountID, AssetID: assetID}
	var notifyCode int64
	err := s.pool.QueryRow(ctx, query, accountID, assetID).Scan(
		&a.LastValidLatitude, &a.LastValidLongitude, &a.LastGPSTimestamp,
		&a.LastOdometerKM, &a.OdometerOffsetKM, &a.MaxOdometerKM,
		&a.LastBatteryLevel, &a.LastFuelLevel, &a.ActiveCorridor,
		&a.LastNotifyTime, &notifyCode, &a.NotifySelector, &a.AllowNotify,
		&a.IgnitionIndex,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("asset query failed: %w", err)
	}
	a.LastNotifyCode = domain.StatusCode(notifyCode)
	return a, nil
}

// LoadGeozones reads the full zone catalogue, typically once at startup.
func (s *PostgresStore) LoadGeozones(ctx context.Context) ([]*domain.Geozone, error) {
	query := `
		SELECT account_id, zone_id, description, client_id, priority,
		       arrival_zone, departure_zone,
		       corridor_id, corridor_start, corridor_end,
		       reverse_geocode, client_upload,
		       street_address, city, state_province, postal_code, country, subdivision,
		       shape, center_latitude, center_longitude, radius_meters,
		       min_latitude, max_latitude, min_longitude, max_longitude
		FROM geozones
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("geozone query failed: %w", err)
	}
	defer rows.Close()

	var zones []*domain.Geozone
	for rows.Next() {
		z := &domain.Geozone{}
		var shape int
		err := rows.Scan(
			&z.AccountID, &z.ZoneID, &z.Description, &z.ClientID, &z.Priority,
			&z.ArrivalZone, &z.DepartureZone,
			&z.CorridorID, &z.CorridorStart, &z.CorridorEnd,
			&z.ReverseGeocode, &z.ClientUpload,
			&z.StreetAddress, &z.City, &z.StateProvince, &z.PostalCode, &z.Country, &z.Subdivision,
			&shape, &z.CenterLatitude, &z.CenterLongitude, &z.RadiusMeters,
			&z.MinLatitude, &z.MaxLatitude, &z.MinLongitude, &z.MaxLongitude,
		)
		if err != nil {
			return nil, fmt.Errorf("geozone scan failed: %w", err)
		}
		z.Shape = domain.GeozoneShape(shape)
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

// RecordNotification implements rules.NotificationSink.
func (s *PostgresStore) RecordNotification(ctx context.Context, n *rules.Notification) error {
	query := `
		INSERT INTO asset_notifications
			(id, account_id, asset_id, rule, severity, triggered_value, status_code, event_timestamp, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		n.ID, n.AccountID, n.AssetID, n.Rule, string(n.Severity),
		n.Value, int64(n.StatusCode), n.Timestamp, n.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("notification insert failed: %w", err)
	}
	return nil
}

func eventFieldValue(ev *domain.Event, field string) (interface{}, bool) {
	switch field {
	case domain.EventFieldCellLatitude:
		return ev.CellLatitude, true
	case domain.EventFieldCellLongitude:
		return ev.CellLongitude, true
	case domain.EventFieldGeozoneID:
		return ev.GeozoneID, true
	case domain.EventFieldGeozoneIndex:
		return ev.GeozoneIndex, true
	case domain.EventFieldAddress:
		return ev.Address, true
	case domain.EventFieldStreetAddress:
		return ev.StreetAddress, true
	case domain.EventFieldCity:
		return ev.City, true
	case domain.EventFieldStateProvince:
		return ev.StateProvince, true
	case domain.EventFieldPostalCode:
		return ev.PostalCode, true
	case domain.EventFieldCountry:
		return ev.Country, true
	case domain.EventFieldSubdivision:
		return ev.Subdivision, true
	case domain.EventFieldSpeedLimitKPH:
		return ev.SpeedLimitKPH, true
	}
	return nil, false
}

func assetFieldValue(a *domain.Asset, field string) (interface{}, bool) {
	switch field {
	case domain.AssetFieldLastValidLatitude:
		return a.LastValidLatitude, true
	case domain.AssetFieldLastValidLongitude:
		return a.LastValidLongitude, true
	case domain.AssetFieldLastGPSTimestamp:
		return a.LastGPSTimestamp, true
	case domain.AssetFieldLastOdometerKM:
		return a.LastOdometerKM, true
	case domain.AssetFieldLastBatteryLevel:
		return a.LastBatteryLevel, true
	case domain.AssetFieldLastFuelLevel:
		return a.LastFuelLevel, true
	case domain.AssetFieldActiveCorridor:
		return a.ActiveCorridor, true
	case domain.AssetFieldLastNotifyTime:
		return a.LastNotifyTime, true
	case domain.AssetFieldLastNotifyCode:
		return int64(a.LastNotifyCode), true
	}
	return nil, false
}
