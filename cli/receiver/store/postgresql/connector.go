package postgresql

/*
Fleet state store backed by PostgreSQL.

Storage section parameters:

host = "localhost"
port = "5432"
user = "postgres"
password = "postgres"
database = "fleet"
sslmode = "disable"
*/

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/openfleet/fleettrack/cli/receiver/store"
)

type Connector struct {
	connection *sql.DB
	config     map[string]string
}

func (c *Connector) Init(cfg map[string]string) error {
	if cfg == nil {
		return fmt.Errorf("empty storage configuration")
	}
	c.config = cfg

	connStr := fmt.Sprintf("dbname=%s host=%s port=%s user=%s password=%s sslmode=%s",
		cfg["database"], cfg["host"], cfg["port"], cfg["user"], cfg["password"], cfg["sslmode"])

	var err error
	if c.connection, err = sql.Open("postgres", connStr); err != nil {
		return fmt.Errorf("open PostgreSQL connection: %w", err)
	}
	if err = c.connection.Ping(); err != nil {
		return fmt.Errorf("PostgreSQL is unreachable: %w", err)
	}
	return nil
}

func (c *Connector) GetVehicle(ctx context.Context, deviceID string) (*store.VehicleState, error) {
	row := c.connection.QueryRowContext(ctx, `
		SELECT id, device_id, latitude, longitude, speed_kmh, status,
		       last_update, last_seen_addr, mileage_total_km, mileage_daily_km,
		       has_position
		FROM vehicle WHERE device_id = $1`, deviceID)

	v := store.VehicleState{}
	err := row.Scan(&v.ID, &v.DeviceID, &v.Latitude, &v.Longitude, &v.SpeedKmh,
		&v.Status, &v.LastUpdate, &v.LastSeenAddr, &v.MileageTotalKm,
		&v.MileageDailyKm, &v.HasPosition)
	if err == sql.ErrNoRows {
		return nil, store.ErrVehicleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select vehicle %q: %w", deviceID, err)
	}
	return &v, nil
}

func (c *Connector) DeviceIDs(ctx context.Context) ([]string, error) {
	rows, err := c.connection.QueryContext(ctx, `SELECT device_id FROM vehicle`)
	if err != nil {
		return nil, fmt.Errorf("select device ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan device id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (c *Connector) UpdateVehicle(ctx context.Context, deviceID string, m store.Mutation) error {
	res, err := c.connection.ExecContext(ctx, `
		UPDATE vehicle SET
			latitude         = COALESCE($2, latitude),
			longitude        = COALESCE($3, longitude),
			speed_kmh        = COALESCE($4, speed_kmh),
			status           = COALESCE($5, status),
			last_update      = COALESCE($6, last_update),
			last_seen_addr   = COALESCE($7, last_seen_addr),
			has_position     = has_position OR $2 IS NOT NULL,
			mileage_total_km = mileage_total_km + $8,
			mileage_daily_km = mileage_daily_km + $8
		WHERE device_id = $1`,
		deviceID, m.Latitude, m.Longitude, m.SpeedKmh, m.Status,
		m.LastUpdate, m.LastSeenAddr, m.MileageAddKm)
	if err != nil {
		return fmt.Errorf("update vehicle %q: %w", deviceID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vehicle %q: %w", deviceID, err)
	}
	if affected == 0 {
		return store.ErrVehicleNotFound
	}
	return nil
}

func (c *Connector) AppendHistory(ctx context.Context, p store.HistoryPoint) error {
	_, err := c.connection.ExecContext(ctx, `
		INSERT INTO location_history (vehicle_id, latitude, longitude, speed_kmh, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.VehicleID, p.Latitude, p.Longitude, p.SpeedKmh, p.Timestamp)
	if err != nil {
		return fmt.Errorf("insert history point for vehicle %d: %w", p.VehicleID, err)
	}
	return nil
}

func (c *Connector) Close() error {
	return c.connection.Close()
}
