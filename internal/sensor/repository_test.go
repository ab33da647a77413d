package sensor

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE sensor_devices (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		device_type      TEXT NOT NULL DEFAULT 'esp32_sensor',
		room             TEXT NOT NULL DEFAULT '',
		ip_address       TEXT NOT NULL DEFAULT '',
		mac_address      TEXT NOT NULL DEFAULT '',
		firmware_version TEXT NOT NULL DEFAULT '',
		config           TEXT,
		enabled          INTEGER NOT NULL DEFAULT 1,
		last_seen        TEXT,
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL
	);
	CREATE TABLE sensor_readings (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id   TEXT NOT NULL REFERENCES sensor_devices(id) ON DELETE CASCADE,
		sensor_type TEXT NOT NULL,
		value       REAL NOT NULL,
		unit        TEXT NOT NULL DEFAULT '',
		quality     TEXT NOT NULL DEFAULT 'good',
		timestamp   TEXT NOT NULL
	);
	CREATE TABLE sensor_alerts (
		id              TEXT PRIMARY KEY,
		device_id       TEXT NOT NULL REFERENCES sensor_devices(id) ON DELETE CASCADE,
		alert_type      TEXT NOT NULL,
		severity        TEXT NOT NULL,
		message         TEXT NOT NULL DEFAULT '',
		threshold_value REAL,
		current_value   REAL,
		is_active       INTEGER NOT NULL DEFAULT 1,
		acknowledged    INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

func testSensor(id string) *Device {
	return &Device{
		ID:              id,
		Name:            "Test Sensor",
		DeviceType:      DefaultDeviceType,
		Room:            "living_room",
		IPAddress:       "192.168.1.50",
		FirmwareVersion: "1.2.0",
		Enabled:         true,
	}
}

func TestSQLiteRepository_UpsertIsIdempotent(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testSensor("esp32-01")
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	d.FirmwareVersion = "1.3.0"
	d.IPAddress = "192.168.1.51"
	if err := repo.Upsert(ctx, d); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, "esp32-01")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FirmwareVersion != "1.3.0" {
		t.Errorf("FirmwareVersion = %q, want %q", got.FirmwareVersion, "1.3.0")
	}
	if got.IPAddress != "192.168.1.51" {
		t.Errorf("IPAddress = %q, want %q", got.IPAddress, "192.168.1.51")
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("List returned %d devices, want 1", len(devices))
	}
}

func TestSQLiteRepository_GetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrSensorNotFound) {
		t.Errorf("GetByID = %v, want ErrSensorNotFound", err)
	}
}

func TestSQLiteRepository_UpdateConfigRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, testSensor("esp32-01")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	config := map[string]any{
		"thresholds": map[string]any{"temperature_high": 28.0},
		"interval":   60.0,
	}
	if err := repo.UpdateConfig(ctx, "esp32-01", config); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	got, err := repo.GetByID(ctx, "esp32-01")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	th := got.GetThresholds()
	if th.TemperatureHigh == nil || *th.TemperatureHigh != 28.0 {
		t.Errorf("TemperatureHigh = %v, want 28.0", th.TemperatureHigh)
	}
}

func TestSQLiteRepository_ReadingsQueryAndLatest(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, testSensor("esp32-01")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var batch []Reading
	for i := 0; i < 5; i++ {
		batch = append(batch, Reading{
			DeviceID:   "esp32-01",
			SensorType: TypeTemperature,
			Value:      20.0 + float64(i),
			Unit:       "°C",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	stored, err := repo.InsertReadings(ctx, batch)
	if err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}
	if stored != 5 {
		t.Errorf("stored %d readings, want 5", stored)
	}

	readings, err := repo.QueryReadings(ctx, "esp32-01", TypeTemperature, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("QueryReadings returned %d, want 3", len(readings))
	}
	if readings[0].Value != 22.0 {
		t.Errorf("oldest in window = %v, want 22.0", readings[0].Value)
	}

	latest, err := repo.LatestReading(ctx, "esp32-01", TypeTemperature)
	if err != nil {
		t.Fatalf("LatestReading: %v", err)
	}
	if latest == nil || latest.Value != 24.0 {
		t.Errorf("LatestReading = %+v, want value 24.0", latest)
	}

	none, err := repo.LatestReading(ctx, "esp32-01", TypeHumidity)
	if err != nil {
		t.Fatalf("LatestReading humidity: %v", err)
	}
	if none != nil {
		t.Errorf("LatestReading for missing type = %+v, want nil", none)
	}
}

func TestSQLiteRepository_DeleteReadingsBefore(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, testSensor("esp32-01")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	now := time.Now().UTC()
	_, err := repo.InsertReadings(ctx, []Reading{
		{DeviceID: "esp32-01", SensorType: TypeTemperature, Value: 21, Timestamp: now.AddDate(0, 0, -40)},
		{DeviceID: "esp32-01", SensorType: TypeTemperature, Value: 22, Timestamp: now},
	})
	if err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}

	deleted, err := repo.DeleteReadingsBefore(ctx, now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("DeleteReadingsBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted %d readings, want 1", deleted)
	}
}

func TestSQLiteRepository_AlertLifecycle(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, testSensor("esp32-01")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	threshold, current := 28.0, 31.5
	alert := &Alert{
		DeviceID:       "esp32-01",
		AlertType:      AlertTemperatureHigh,
		Severity:       SeverityWarning,
		Message:        "too hot",
		ThresholdValue: &threshold,
		CurrentValue:   &current,
		IsActive:       true,
	}
	if err := repo.CreateAlert(ctx, alert); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if alert.ID == "" {
		t.Fatal("CreateAlert should assign an ID")
	}

	exists, err := repo.HasActiveAlert(ctx, "esp32-01", AlertTemperatureHigh)
	if err != nil {
		t.Fatalf("HasActiveAlert: %v", err)
	}
	if !exists {
		t.Error("HasActiveAlert = false, want true")
	}

	active, err := repo.ListAlerts(ctx, true)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("ListAlerts(active) returned %d, want 1", len(active))
	}
	if active[0].ThresholdValue == nil || *active[0].ThresholdValue != 28.0 {
		t.Errorf("ThresholdValue = %v, want 28.0", active[0].ThresholdValue)
	}

	if err := repo.AcknowledgeAlert(ctx, alert.ID); err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	active, err = repo.ListAlerts(ctx, true)
	if err != nil {
		t.Fatalf("ListAlerts after ack: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListAlerts(active) after ack returned %d, want 0", len(active))
	}

	if err := repo.AcknowledgeAlert(ctx, "missing"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("AcknowledgeAlert missing = %v, want ErrAlertNotFound", err)
	}
}

func TestSQLiteRepository_DeactivateAlerts(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.Upsert(ctx, testSensor("esp32-01")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	alert := &Alert{
		DeviceID:  "esp32-01",
		AlertType: AlertDeviceOffline,
		Severity:  SeverityWarning,
		IsActive:  true,
	}
	if err := repo.CreateAlert(ctx, alert); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}

	if err := repo.DeactivateAlerts(ctx, "esp32-01", AlertDeviceOffline); err != nil {
		t.Fatalf("DeactivateAlerts: %v", err)
	}
	exists, err := repo.HasActiveAlert(ctx, "esp32-01", AlertDeviceOffline)
	if err != nil {
		t.Fatalf("HasActiveAlert: %v", err)
	}
	if exists {
		t.Error("offline alert should be inactive after deactivation")
	}
}
