package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "track_user"),
		dbGetEnv("DB_PASSWORD", "track_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_track"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_extensions(ctx, conn)
	step2_events_table(ctx, conn)
	step3_assets_table(ctx, conn)
	step4_geozones_table(ctx, conn)
	step5_notifications_table(ctx, conn)
	step6_indexes(ctx, conn)
	step7_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_redis/seed_redis.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	// TimescaleDB — required for hypertable
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)

	// PostGIS — required for exact radius queries (ST_DWithin)
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS postgis;",
		"postgis extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — asset_events table
// ─────────────────────────────────────────────────────────────
func step2_events_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: asset_events table ──────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS asset_events (

			-- Device clock, Unix epoch seconds. TimescaleDB partitions
			-- by this column.
			timestamp            BIGINT           NOT NULL,

			-- Server receipt time — separate from the device clock.
			-- Device clocks drift; received_at is always accurate.
			received_at          TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			-- Identity
			account_id           TEXT             NOT NULL,
			asset_id             TEXT             NOT NULL,
			status_code          BIGINT           NOT NULL,

			-- GPS fix
			latitude             DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude            DOUBLE PRECISION NOT NULL DEFAULT 0,
			speed_kph            DOUBLE PRECISION NOT NULL DEFAULT 0,
			heading              DOUBLE PRECISION NOT NULL DEFAULT 0,
			odometer_km          DOUBLE PRECISION NOT NULL DEFAULT 0,
			input_mask           BIGINT           NOT NULL DEFAULT 0,

			-- PostGIS geography column for exact radius queries.
			-- GENERATED ALWAYS AS means it's auto-computed from lat/lng.
			location             GEOGRAPHY(POINT, 4326)
			                     GENERATED ALWAYS AS (
			                         ST_SetSRID(
			                             ST_MakePoint(longitude, latitude),
			                             4326
			                         )::geography
			                     ) STORED,

			-- Sensor readings
			battery_level        DOUBLE PRECISION NOT NULL DEFAULT 0,
			fuel_level           DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Cell tower identity, filled by the device; the resolved
			-- tower location is written later by the enrichment workers.
			mcc                  INTEGER          NOT NULL DEFAULT 0,
			mnc                  INTEGER          NOT NULL DEFAULT 0,
			cell_id              INTEGER          NOT NULL DEFAULT 0,
			lac                  INTEGER          NOT NULL DEFAULT 0,
			cell_latitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
			cell_longitude       DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Geozone resolution
			geozone_index        BIGINT           NOT NULL DEFAULT 0,
			geozone_id           TEXT             NOT NULL DEFAULT '',

			-- Reverse-geocoded address, written at insert when cheap or
			-- by the enrichment workers otherwise
			address              TEXT             NOT NULL DEFAULT '',
			street_address       TEXT             NOT NULL DEFAULT '',
			city                 TEXT             NOT NULL DEFAULT '',
			state_province       TEXT             NOT NULL DEFAULT '',
			postal_code          TEXT             NOT NULL DEFAULT '',
			country              TEXT             NOT NULL DEFAULT '',
			subdivision          TEXT             NOT NULL DEFAULT '',
			speed_limit_kph      DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Opaque device payload, stored for debugging and replay
			sensor_data          BYTEA
		);
	`, "asset_events table created")

	// Convert to TimescaleDB hypertable. The time column is epoch
	// seconds, so the chunk interval is numeric: 7 days.
	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'asset_events',
			'timestamp',
			chunk_time_interval => 604800,
			if_not_exists => TRUE
		);
	`, "asset_events converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — assets table
// ─────────────────────────────────────────────────────────────
func step3_assets_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: assets table ────────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS assets (

			account_id            TEXT             NOT NULL,
			asset_id              TEXT             NOT NULL,
			description           TEXT             NOT NULL DEFAULT '',

			-- Last known good GPS fix, maintained by the ingest pipeline
			last_valid_latitude   DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_valid_longitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_gps_timestamp    BIGINT           NOT NULL DEFAULT 0,

			-- Odometer aggregates. max_odometer_km of 0 means "use the
			-- server default".
			last_odometer_km      DOUBLE PRECISION NOT NULL DEFAULT 0,
			odometer_offset_km    DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_odometer_km       DOUBLE PRECISION NOT NULL DEFAULT 0,

			last_battery_level    DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_fuel_level       DOUBLE PRECISION NOT NULL DEFAULT 0,

			-- Geozone corridor currently active for this asset, empty when none
			active_corridor       TEXT             NOT NULL DEFAULT '',

			-- Rule notification state
			last_notify_time      BIGINT           NOT NULL DEFAULT 0,
			last_notify_code      BIGINT           NOT NULL DEFAULT 0,
			notify_selector       TEXT             NOT NULL DEFAULT '',
			allow_notify          BOOLEAN          NOT NULL DEFAULT false,

			-- Digital input bit carrying ignition state, -1 when unknown
			ignition_index        INTEGER          NOT NULL DEFAULT -1,

			PRIMARY KEY (account_id, asset_id)
		);
	`, "assets table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — geozones table
// ─────────────────────────────────────────────────────────────
func step4_geozones_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: geozones table ──────────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS geozones (

			account_id       TEXT             NOT NULL,
			zone_id          TEXT             NOT NULL,
			description      TEXT             NOT NULL DEFAULT '',

			-- Numeric ID devices use to reference this zone, 0 when the
			-- zone is server-side only
			client_id        BIGINT           NOT NULL DEFAULT 0,

			-- Overlap tie-break: lower priority value wins
			priority         INTEGER          NOT NULL DEFAULT 0,

			-- Which transition kinds this zone participates in
			arrival_zone     BOOLEAN          NOT NULL DEFAULT true,
			departure_zone   BOOLEAN          NOT NULL DEFAULT true,

			-- Corridor membership
			corridor_id      TEXT             NOT NULL DEFAULT '',
			corridor_start   BOOLEAN          NOT NULL DEFAULT false,
			corridor_end     BOOLEAN          NOT NULL DEFAULT false,

			reverse_geocode  BOOLEAN          NOT NULL DEFAULT true,
			client_upload    BOOLEAN          NOT NULL DEFAULT false,

			-- Address applied to events inside this zone
			street_address   TEXT             NOT NULL DEFAULT '',
			city             TEXT             NOT NULL DEFAULT '',
			state_province   TEXT             NOT NULL DEFAULT '',
			postal_code      TEXT             NOT NULL DEFAULT '',
			country          TEXT             NOT NULL DEFAULT '',
			subdivision      TEXT             NOT NULL DEFAULT '',

			-- Geometry: 0 = circle, 1 = bounding box
			shape            INTEGER          NOT NULL DEFAULT 0,
			center_latitude  DOUBLE PRECISION NOT NULL DEFAULT 0,
			center_longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
			radius_meters    DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_latitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_latitude     DOUBLE PRECISION NOT NULL DEFAULT 0,
			min_longitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_longitude    DOUBLE PRECISION NOT NULL DEFAULT 0,

			PRIMARY KEY (account_id, zone_id)
		);
	`, "geozones table created")
}

// ─────────────────────────────────────────────────────────────
// Step 5 — asset_notifications table
// ─────────────────────────────────────────────────────────────
func step5_notifications_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: asset_notifications table ───────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS asset_notifications (

			id               UUID             PRIMARY KEY,

			-- Identity — same values as asset_events
			account_id       TEXT             NOT NULL,
			asset_id         TEXT             NOT NULL,

			-- Rule that fired, e.g. SPEEDING | LOW_FUEL | LOW_BATTERY
			rule             TEXT             NOT NULL,

			severity         TEXT             NOT NULL,

			-- The sensor value that triggered this notification,
			-- e.g. speed was 127.5 km/h when SPEEDING fired
			triggered_value  DOUBLE PRECISION,

			-- Identity of the event the rule fired on
			status_code      BIGINT           NOT NULL,
			event_timestamp  BIGINT           NOT NULL,

			created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			-- Operator acknowledgment — NULL means not yet acknowledged
			acknowledged_at  TIMESTAMPTZ,
			acknowledged_by  TEXT,

			CONSTRAINT chk_severity CHECK (
				severity IN ('INFO', 'WARNING', 'CRITICAL')
			)
		);
	`, "asset_notifications table created")
}

// ─────────────────────────────────────────────────────────────
// Step 6 — Indexes
// ─────────────────────────────────────────────────────────────
func step6_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 6: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_events_asset_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_events_asset_time
				  ON asset_events (account_id, asset_id, timestamp DESC);`,
			why: "query: event history for one asset",
		},
		{
			name: "idx_events_account_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_events_account_time
				  ON asset_events (account_id, timestamp DESC);`,
			why: "query: all assets in an account",
		},
		{
			name: "idx_events_location",
			sql: `CREATE INDEX IF NOT EXISTS idx_events_location
				  ON asset_events USING GIST (location);`,
			why: "query: assets near a lat/lng (ST_DWithin)",
		},
		{
			name: "idx_geozones_client_id",
			sql: `CREATE INDEX IF NOT EXISTS idx_geozones_client_id
				  ON geozones (account_id, client_id)
				  WHERE client_id > 0;`,
			why: "query: device-reported zone lookup (partial index)",
		},
		{
			name: "idx_notifications_asset",
			sql: `CREATE INDEX IF NOT EXISTS idx_notifications_asset
				  ON asset_notifications (account_id, asset_id, created_at DESC);`,
			why: "query: notifications for one asset",
		},
		{
			name: "idx_notifications_unacknowledged",
			sql: `CREATE INDEX IF NOT EXISTS idx_notifications_unacknowledged
				  ON asset_notifications (account_id, created_at DESC)
				  WHERE acknowledged_at IS NULL;`,
			why: "query: unacknowledged notifications only (partial index)",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 7 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step7_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 7: Verification ────────────────────────")

	// Check tables exist
	tables := []string{"asset_events", "assets", "geozones", "asset_notifications"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	// Check hypertable
	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'asset_events'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("asset_events is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	// Check indexes
	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('asset_events', 'geozones', 'asset_notifications')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
