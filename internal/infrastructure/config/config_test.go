package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
lab:
  id: "test-lab"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
instruments:
  - name: "psu"
    driver: "dp800"
    address: "192.168.1.5:5555"
    timeout_seconds: 3
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Lab.ID != "test-lab" {
		t.Errorf("Lab.ID = %q, want %q", cfg.Lab.ID, "test-lab")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	if len(cfg.Instruments) != 1 {
		t.Fatalf("len(Instruments) = %d, want 1", len(cfg.Instruments))
	}
	if cfg.Instruments[0].Driver != "dp800" {
		t.Errorf("Instruments[0].Driver = %q, want %q", cfg.Instruments[0].Driver, "dp800")
	}
	if got := cfg.Instruments[0].Timeout(); got != 3*time.Second {
		t.Errorf("Instruments[0].Timeout() = %v, want 3s", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
lab:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty lab.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	// validJWTSecret is a secret that meets the 32-character minimum requirement
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	valid := func() *Config {
		return &Config{
			Lab:      LabConfig{ID: "lab-001"},
			Database: DatabaseConfig{Path: "/data/labcore.db"},
			MQTT:     MQTTConfig{QoS: 1},
			API:      APIConfig{Port: 8080},
			Security: SecurityConfig{JWT: JWTConfig{Secret: validJWTSecret}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing lab ID", mutate: func(c *Config) { c.Lab.ID = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{
			name: "valid instrument",
			mutate: func(c *Config) {
				c.Instruments = []InstrumentConfig{
					{Name: "psu", Driver: "dp800", Address: "10.0.0.5:5555"},
				}
			},
		},
		{
			name: "instrument missing driver",
			mutate: func(c *Config) {
				c.Instruments = []InstrumentConfig{
					{Name: "psu", Address: "10.0.0.5:5555"},
				}
			},
			wantErr: true,
		},
		{
			name: "instrument missing address",
			mutate: func(c *Config) {
				c.Instruments = []InstrumentConfig{
					{Name: "psu", Driver: "dp800"},
				}
			},
			wantErr: true,
		},
		{
			name: "duplicate instrument names",
			mutate: func(c *Config) {
				c.Instruments = []InstrumentConfig{
					{Name: "psu", Driver: "dp800", Address: "10.0.0.5:5555"},
					{Name: "psu", Driver: "dp800", Address: "10.0.0.6:5555"},
				}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("LABCORE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("LABCORE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("LABCORE_MQTT_USERNAME", "testuser")
	t.Setenv("LABCORE_MQTT_PASSWORD", "testpass")
	t.Setenv("LABCORE_API_HOST", "192.168.1.1")
	t.Setenv("LABCORE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("LABCORE_JWT_SECRET", "jwt-secret")
	t.Setenv("LABCORE_AUTH_USERNAME", "operator")
	t.Setenv("LABCORE_AUTH_PASSWORD", "operator-pass")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}

	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}

	if cfg.Security.Auth.Username != "operator" {
		t.Errorf("Security.Auth.Username = %q, want %q", cfg.Security.Auth.Username, "operator")
	}

	if cfg.Security.Auth.Password != "operator-pass" {
		t.Errorf("Security.Auth.Password = %q, want %q", cfg.Security.Auth.Password, "operator-pass")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Lab.ID == "" {
		t.Error("defaultConfig should have non-empty Lab.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
}
