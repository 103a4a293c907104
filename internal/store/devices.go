package store

import (
	"crypto/rand"
	"database/sql"
	"math/big"
	"time"
)

// Device is one provisioned TRMNL display.
type Device struct {
	MacAddress      string
	APIKey          string
	FriendlyID      string
	CreatedAt       time.Time
	LastSeen        time.Time
	FirmwareVersion string
	BatteryVoltage  float64
}

// GetDevice returns the device with the given MAC address, or nil if it
// has not been provisioned.
func (db *DB) GetDevice(macAddress string) (*Device, error) {
	row := db.conn.QueryRow(
		`SELECT mac_address, api_key, friendly_id, created_at, last_seen,
		 firmware_version, battery_voltage
		 FROM devices WHERE mac_address = ?`, macAddress,
	)

	var d Device
	var createdAt string
	var lastSeen, firmware sql.NullString
	var battery sql.NullFloat64
	err := row.Scan(&d.MacAddress, &d.APIKey, &d.FriendlyID, &createdAt,
		&lastSeen, &firmware, &battery)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if lastSeen.Valid {
		d.LastSeen, _ = time.Parse(time.RFC3339, lastSeen.String)
	}
	d.FirmwareVersion = firmware.String
	d.BatteryVoltage = battery.Float64
	return &d, nil
}

// CreateDevice inserts a newly provisioned device.
func (db *DB) CreateDevice(d *Device) error {
	_, err := db.conn.Exec(
		`INSERT INTO devices (mac_address, api_key, friendly_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		d.MacAddress, d.APIKey, d.FriendlyID,
		d.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// TouchDevice updates a device's last-seen timestamp and any telemetry
// fields that were reported. Zero values are left untouched.
func (db *DB) TouchDevice(macAddress string, seenAt time.Time, firmwareVersion string, batteryVoltage float64) error {
	updates := "last_seen = ?"
	params := []any{seenAt.UTC().Format(time.RFC3339)}

	if firmwareVersion != "" {
		updates += ", firmware_version = ?"
		params = append(params, firmwareVersion)
	}
	if batteryVoltage > 0 {
		updates += ", battery_voltage = ?"
		params = append(params, batteryVoltage)
	}
	params = append(params, macAddress)

	_, err := db.conn.Exec("UPDATE devices SET "+updates+" WHERE mac_address = ?", params...)
	return err
}

const (
	apiKeyAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	friendlyIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateAPIKey returns a 32-character random device credential.
func GenerateAPIKey() string {
	return randomString(apiKeyAlphabet, 32)
}

// GenerateFriendlyID returns a short human-readable device identifier.
func GenerateFriendlyID() string {
	return randomString(friendlyIDAlphabet, 6)
}

func randomString(alphabet string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err) // crypto/rand failure is unrecoverable
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
