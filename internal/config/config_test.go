package config

import (
	"os"
	"testing"
	"time"
)

func setEnvVars(vars map[string]string) {
	for k, v := range vars {
		os.Setenv(k, v)
	}
}

func clearEnvVars(vars []string) {
	for _, k := range vars {
		os.Unsetenv(k)
	}
}

var configEnvVars = []string{
	"HOST", "PORT", "READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT", "ENVIRONMENT",
	"DB_DRIVER", "DB_DSN", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSL_MODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_CONN_MAX_IDLE_TIME", "DB_LOG_LEVEL",
	"REDIS_ENABLED", "REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"REDIS_MIN_IDLE_CONNS", "REDIS_MAX_RETRIES", "REDIS_DIAL_TIMEOUT", "REDIS_READ_TIMEOUT", "REDIS_WRITE_TIMEOUT",
	"REDIS_KEY_PREFIX", "CACHE_TTL",
	"WORKER_CONCURRENCY", "WORKER_POLL_INTERVAL", "REPAIR_DELAY", "RECONCILE_INTERVAL",
	"TASKS_DEFAULT_LIMIT", "USERS_DEFAULT_LIMIT", "QUERY_MAX_LIMIT",
	"LOG_LEVEL", "LOG_FORMAT",
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnvVars(configEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with default config, got: %v", err)
	}

	if config.Server.Port != "3000" {
		t.Errorf("Expected default port '3000', got %s", config.Server.Port)
	}

	if config.Server.Environment != "development" {
		t.Errorf("Expected default environment 'development', got %s", config.Server.Environment)
	}

	if config.Database.Driver != "postgres" {
		t.Errorf("Expected default driver 'postgres', got %s", config.Database.Driver)
	}

	if config.Database.Name != "task_tracker" {
		t.Errorf("Expected default DB name 'task_tracker', got %s", config.Database.Name)
	}

	if config.Database.MaxOpenConns != 25 {
		t.Errorf("Expected default max open conns 25, got %d", config.Database.MaxOpenConns)
	}

	if config.Redis.Enabled {
		t.Error("Expected Redis to be disabled by default")
	}

	if config.Redis.CacheTTL != 5*time.Minute {
		t.Errorf("Expected default cache TTL 5m, got %v", config.Redis.CacheTTL)
	}

	if config.Worker.Concurrency != 2 {
		t.Errorf("Expected default worker concurrency 2, got %d", config.Worker.Concurrency)
	}

	if config.Worker.ReconcileInterval != 15*time.Minute {
		t.Errorf("Expected default reconcile interval 15m, got %v", config.Worker.ReconcileInterval)
	}

	if config.Query.TaskDefaultLimit != 100 {
		t.Errorf("Expected default task limit 100, got %d", config.Query.TaskDefaultLimit)
	}

	if config.Query.UserDefaultLimit != 0 {
		t.Errorf("Expected unbounded default user limit, got %d", config.Query.UserDefaultLimit)
	}

	if config.Log.Level != "info" || config.Log.Format != "text" {
		t.Errorf("Expected info/text logging, got %s/%s", config.Log.Level, config.Log.Format)
	}
}

func TestLoadConfig_CustomEnvironment(t *testing.T) {
	envVars := map[string]string{
		"HOST":                "0.0.0.0",
		"PORT":                "9000",
		"ENVIRONMENT":         "production",
		"DB_HOST":             "db.example.com",
		"DB_PASSWORD":         "secure_password",
		"DB_MAX_OPEN_CONNS":   "50",
		"REDIS_ENABLED":       "true",
		"REDIS_HOST":          "redis.example.com",
		"REDIS_PORT":          "6380",
		"REDIS_DB":            "1",
		"CACHE_TTL":           "30s",
		"WORKER_CONCURRENCY":  "8",
		"RECONCILE_INTERVAL":  "0s",
		"TASKS_DEFAULT_LIMIT": "20",
		"QUERY_MAX_LIMIT":     "500",
		"READ_TIMEOUT":        "45s",
		"LOG_FORMAT":          "json",
	}

	setEnvVars(envVars)
	defer clearEnvVars(configEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error with custom config, got: %v", err)
	}

	if config.GetServerAddr() != "0.0.0.0:9000" {
		t.Errorf("Expected server addr '0.0.0.0:9000', got %s", config.GetServerAddr())
	}

	if !config.IsProduction() {
		t.Error("Expected production environment")
	}

	if config.Database.MaxOpenConns != 50 {
		t.Errorf("Expected max open conns 50, got %d", config.Database.MaxOpenConns)
	}

	if !config.Redis.Enabled || config.GetRedisAddr() != "redis.example.com:6380" {
		t.Errorf("Expected Redis enabled at redis.example.com:6380, got %v %s", config.Redis.Enabled, config.GetRedisAddr())
	}

	if config.Redis.DB != 1 {
		t.Errorf("Expected Redis DB 1, got %d", config.Redis.DB)
	}

	if config.Redis.CacheTTL != 30*time.Second {
		t.Errorf("Expected cache TTL 30s, got %v", config.Redis.CacheTTL)
	}

	if config.Worker.Concurrency != 8 {
		t.Errorf("Expected worker concurrency 8, got %d", config.Worker.Concurrency)
	}

	if config.Worker.ReconcileInterval != 0 {
		t.Errorf("Expected periodic reconcile disabled, got %v", config.Worker.ReconcileInterval)
	}

	if config.Query.TaskDefaultLimit != 20 || config.Query.MaxLimit != 500 {
		t.Errorf("Expected limits 20/500, got %d/%d", config.Query.TaskDefaultLimit, config.Query.MaxLimit)
	}

	if config.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Expected read timeout 45s, got %v", config.Server.ReadTimeout)
	}

	if config.Log.Format != "json" {
		t.Errorf("Expected json log format, got %s", config.Log.Format)
	}
}

func TestLoadConfig_ProductionValidation(t *testing.T) {
	clearEnvVars(configEnvVars)
	setEnvVars(map[string]string{"ENVIRONMENT": "production"})
	defer clearEnvVars(configEnvVars)

	_, err := LoadConfig()
	if err == nil {
		t.Fatal("Expected error for missing database password in production")
	}

	if err.Error() != "database password is required in production" {
		t.Errorf("Expected specific error message, got: %v", err)
	}

	os.Setenv("DB_DSN", "postgres://app@db/tasks")
	if _, err := LoadConfig(); err != nil {
		t.Errorf("Expected an explicit DSN to satisfy validation, got: %v", err)
	}
}

func TestLoadConfig_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mongodb"}},
		{"sqlite without dsn", map[string]string{"DB_DRIVER": "sqlite"}},
		{"negative limit", map[string]string{"TASKS_DEFAULT_LIMIT": "-1"}},
		{"no workers", map[string]string{"WORKER_CONCURRENCY": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(configEnvVars)
			setEnvVars(tt.env)
			defer clearEnvVars(configEnvVars)

			if _, err := LoadConfig(); err == nil {
				t.Error("Expected a validation error")
			}
		})
	}
}

func TestLoadConfig_SQLiteDriver(t *testing.T) {
	clearEnvVars(configEnvVars)
	setEnvVars(map[string]string{"DB_DRIVER": "SQLite", "DB_DSN": "file:tasks.db"})
	defer clearEnvVars(configEnvVars)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if config.Database.Driver != "sqlite" {
		t.Errorf("Expected normalized driver 'sqlite', got %s", config.Database.Driver)
	}

	if config.GetDatabaseDSN() != "file:tasks.db" {
		t.Errorf("Expected DSN to be used as is, got %s", config.GetDatabaseDSN())
	}
}

func TestConfig_GetDatabaseDSN(t *testing.T) {
	config := &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "testuser",
			Password: "testpass",
			Name:     "testdb",
			SSLMode:  "require",
		},
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require"
	actual := config.GetDatabaseDSN()

	if actual != expected {
		t.Errorf("Expected DSN '%s', got '%s'", expected, actual)
	}
}

func TestConfig_GetRedisAddr(t *testing.T) {
	config := &Config{
		Redis: RedisConfig{
			Host: "redis.example.com",
			Port: "6380",
		},
	}

	expected := "redis.example.com:6380"
	actual := config.GetRedisAddr()

	if actual != expected {
		t.Errorf("Expected Redis addr '%s', got '%s'", expected, actual)
	}
}

func TestConfig_GetServerAddr(t *testing.T) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "9000",
		},
	}

	expected := "0.0.0.0:9000"
	actual := config.GetServerAddr()

	if actual != expected {
		t.Errorf("Expected server addr '%s', got '%s'", expected, actual)
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		environment string
		expected    bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"test", false},
		{"", false},
	}

	for _, test := range tests {
		config := &Config{
			Server: ServerConfig{
				Environment: test.environment,
			},
		}

		actual := config.IsProduction()
		if actual != test.expected {
			t.Errorf("For environment '%s', expected IsProduction() = %v, got %v",
				test.environment, test.expected, actual)
		}
	}
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	defaultValue := "default"

	os.Unsetenv(key)
	result := getEnv(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value '%s', got '%s'", defaultValue, result)
	}

	expectedValue := "custom_value"
	os.Setenv(key, expectedValue)
	defer os.Unsetenv(key)

	result = getEnv(key, defaultValue)
	if result != expectedValue {
		t.Errorf("Expected env value '%s', got '%s'", expectedValue, result)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	key := "TEST_INT_VAR"
	defaultValue := 42

	os.Unsetenv(key)
	result := getEnvAsInt(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %d, got %d", defaultValue, result)
	}

	os.Setenv(key, "100")
	defer os.Unsetenv(key)

	result = getEnvAsInt(key, defaultValue)
	if result != 100 {
		t.Errorf("Expected env value 100, got %d", result)
	}

	os.Setenv(key, "not-a-number")
	result = getEnvAsInt(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %d for invalid int, got %d", defaultValue, result)
	}
}

func TestGetEnvAsBool(t *testing.T) {
	key := "TEST_BOOL_VAR"
	defaultValue := true

	os.Unsetenv(key)
	result := getEnvAsBool(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v, got %v", defaultValue, result)
	}

	testCases := []struct {
		value    string
		expected bool
	}{
		{"true", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{"True", true},
		{"False", false},
		{"invalid", defaultValue}, 
	}

	for _, tc := range testCases {
		os.Setenv(key, tc.value)
		result = getEnvAsBool(key, defaultValue)
		if result != tc.expected {
			t.Errorf("For value '%s', expected %v, got %v", tc.value, tc.expected, result)
		}
	}

	os.Unsetenv(key)
}

func TestGetEnvAsDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"
	defaultValue := 30 * time.Second

	os.Unsetenv(key)
	result := getEnvAsDuration(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v, got %v", defaultValue, result)
	}

	os.Setenv(key, "5m")
	defer os.Unsetenv(key)

	result = getEnvAsDuration(key, defaultValue)
	if result != 5*time.Minute {
		t.Errorf("Expected env value 5m, got %v", result)
	}

	os.Setenv(key, "not-a-duration")
	result = getEnvAsDuration(key, defaultValue)
	if result != defaultValue {
		t.Errorf("Expected default value %v for invalid duration, got %v", defaultValue, result)
	}
}

func TestConfigValidation_EdgeCases(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		hasError bool
		errorMsg string
	}{
		{
			name: "Production with all required fields",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"DB_PASSWORD": "secure-password",
			},
			hasError: false,
		},
		{
			name: "Development without database password",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			hasError: false,
		},
		{
			name: "Staging environment (not production)",
			envVars: map[string]string{
				"ENVIRONMENT": "staging",
			},
			hasError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(configEnvVars)

			setEnvVars(tt.envVars)
			defer func() {
				var keys []string
				for k := range tt.envVars {
					keys = append(keys, k)
				}
				clearEnvVars(keys)
			}()

			config, err := LoadConfig()

			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error, but got none")
				} else if err.Error() != tt.errorMsg {
					t.Errorf("Expected error '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				if config == nil {
					t.Error("Expected config to be loaded")
				}
			}
		})
	}
}

func BenchmarkLoadConfig(b *testing.B) {
	envVars := map[string]string{
		"HOST":        "0.0.0.0",
		"PORT":        "8080",
		"ENVIRONMENT": "production",
		"DB_PASSWORD": "password",
	}
	setEnvVars(envVars)
	defer func() {
		var keys []string
		for k := range envVars {
			keys = append(keys, k)
		}
		clearEnvVars(keys)
	}()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := LoadConfig()
		if err != nil {
			b.Fatalf("Failed to load config: %v", err)
		}
	}
}

func BenchmarkGetDatabaseDSN(b *testing.B) {
	config := &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "user",
			Password: "password",
			Name:     "database",
			SSLMode:  "disable",
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = config.GetDatabaseDSN()
	}
}

func BenchmarkGetEnvAsInt(b *testing.B) {
	os.Setenv("BENCH_INT", "42")
	defer os.Unsetenv("BENCH_INT")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnvAsInt("BENCH_INT", 0)
	}
}

func BenchmarkGetEnvAsDuration(b *testing.B) {
	os.Setenv("BENCH_DURATION", "30s")
	defer os.Unsetenv("BENCH_DURATION")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = getEnvAsDuration("BENCH_DURATION", time.Second)
	}
}
