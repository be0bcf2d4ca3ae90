package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	configContent := `{
		"app_name": "TestApp",
		"listen_ip": "127.0.0.1",
		"listen_port": 9090,
		"session_key": "test-session-key",
		"store_base_url": "http://localhost:5000",
		"store_path": "./test.db"
	}`
	tmpfile, err := os.CreateTemp("", "config.json")
	if err != nil {
		t.Fatalf("Failed to create temporary file: %v", err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temporary file: %v", err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatalf("Failed to close temporary file: %v", err)
	}

	err = LoadConfig(tmpfile.Name())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if AppConfig.AppName != "TestApp" {
		t.Errorf("Expected AppName 'TestApp', got '%s'", AppConfig.AppName)
	}
	if AppConfig.ListenIP != "127.0.0.1" {
		t.Errorf("Expected ListenIP '127.0.0.1', got '%s'", AppConfig.ListenIP)
	}
	if AppConfig.ListenPort != 9090 {
		t.Errorf("Expected ListenPort 9090, got %d", AppConfig.ListenPort)
	}
	if AppConfig.SessionKey != "test-session-key" {
		t.Errorf("Expected SessionKey 'test-session-key', got '%s'", AppConfig.SessionKey)
	}
	if AppConfig.StoreBaseURL != "http://localhost:5000" {
		t.Errorf("Expected StoreBaseURL 'http://localhost:5000', got '%s'", AppConfig.StoreBaseURL)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	tmpfile, _ := os.CreateTemp("", "config.json")
	defer os.Remove(tmpfile.Name())
	tmpfile.Write([]byte(`{"app_name": "TestApp", "session_key": "k"}`))
	tmpfile.Close()

	t.Setenv("AUTOMARKET_STORE_URL", "http://store.example:9999")

	if err := LoadConfig(tmpfile.Name()); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if AppConfig.StoreBaseURL != "http://store.example:9999" {
		t.Errorf("Env override ignored, got '%s'", AppConfig.StoreBaseURL)
	}
	if AppConfig.StorePath != "./automarket.db" {
		t.Errorf("Expected default StorePath, got '%s'", AppConfig.StorePath)
	}
}

func TestLoadConfigGeneratesSessionKey(t *testing.T) {
	tmpfile, _ := os.CreateTemp("", "config.json")
	defer os.Remove(tmpfile.Name())
	tmpfile.Write([]byte(`{"app_name": "TestApp"}`))
	tmpfile.Close()

	if err := LoadConfig(tmpfile.Name()); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if AppConfig.SessionKey == "" {
		t.Error("Expected a generated session key, got empty")
	}
}

func TestLoadConfigResetsBetweenLoads(t *testing.T) {
	first, _ := os.CreateTemp("", "config.json")
	defer os.Remove(first.Name())
	first.Write([]byte(`{"app_name": "First", "session_key": "k", "store_path": "./custom.db"}`))
	first.Close()

	if err := LoadConfig(first.Name()); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if AppConfig.StorePath != "./custom.db" {
		t.Fatalf("Expected './custom.db', got '%s'", AppConfig.StorePath)
	}

	// A second load without store_path must not inherit the previous value
	second, _ := os.CreateTemp("", "config.json")
	defer os.Remove(second.Name())
	second.Write([]byte(`{"app_name": "Second", "session_key": "k"}`))
	second.Close()

	if err := LoadConfig(second.Name()); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if AppConfig.StorePath != "./automarket.db" {
		t.Errorf("Expected default StorePath after reload, got '%s'", AppConfig.StorePath)
	}
}

func TestLoadConfigInvalidPath(t *testing.T) {
	err := LoadConfig("non-existent-path.json")
	if err == nil {
		t.Error("LoadConfig with non-existent path should have failed")
	}
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	tmpfile, _ := os.CreateTemp("", "invalid_config.json")
	defer os.Remove(tmpfile.Name())
	tmpfile.Write([]byte(`{ "invalid": json }`))
	tmpfile.Close()

	err := LoadConfig(tmpfile.Name())
	if err == nil {
		t.Error("LoadConfig with invalid JSON should have failed")
	}
}
