package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StorageDriver != StorageMemory || cfg.LockBackend != LockBackendMemory {
		t.Fatalf("unexpected storage=%q lock=%q", cfg.StorageDriver, cfg.LockBackend)
	}
	if cfg.WaiverBatchSize != 50 || cfg.WaiverMaxBatches != 20 {
		t.Fatalf("unexpected waiver batching: size=%d max=%d", cfg.WaiverBatchSize, cfg.WaiverMaxBatches)
	}
	if !cfg.SwaggerEnabled || !cfg.MetricsEnabled {
		t.Fatalf("expected swagger and metrics enabled in dev")
	}
	if !cfg.AnubisCircuit.Enabled || cfg.AnubisCircuit.FailureCount != 5 {
		t.Fatalf("unexpected anubis circuit defaults: %+v", cfg.AnubisCircuit)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestLoad_SwaggerDisabledInProd(t *testing.T) {
	t.Setenv("APP_ENV", EnvProd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.SwaggerEnabled {
		t.Fatalf("expected swagger disabled by default in prod")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", `foo=bar, uptrace-dsn="https://token@api.uptrace.dev/1"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev/1" {
		t.Fatalf("unexpected UptraceDSN: %q", cfg.UptraceDSN)
	}
}

func TestLoad_StorageAndLockBackends(t *testing.T) {
	tests := []struct {
		name    string
		storage string
		lock    string
		redis   string
		wantErr bool
	}{
		{name: "memory", storage: "memory", lock: "memory"},
		{name: "postgres advisory", storage: "postgres", lock: "postgres"},
		{name: "redis lock over memory store", storage: "memory", lock: "redis", redis: "cache:6379"},
		{name: "advisory lock needs postgres", storage: "memory", lock: "postgres", wantErr: true},
		{name: "unknown storage", storage: "sqlite", lock: "memory", wantErr: true},
		{name: "unknown lock", storage: "memory", lock: "etcd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv("STORAGE_DRIVER", tt.storage)
			t.Setenv("LOCK_BACKEND", tt.lock)
			t.Setenv("REDIS_ADDR", tt.redis)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for storage=%s lock=%s", tt.storage, tt.lock)
				}
				return
			}
			if err != nil {
				t.Fatalf("load config: %v", err)
			}
			if cfg.StorageDriver != tt.storage || cfg.LockBackend != tt.lock {
				t.Fatalf("unexpected storage=%q lock=%q", cfg.StorageDriver, cfg.LockBackend)
			}
		})
	}
}

func TestLoad_WaiverAndJobSettings(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("WAIVER_BATCH_SIZE", "10")
	t.Setenv("WAIVER_MAX_BATCHES", "3")
	t.Setenv("WAIVER_RUN_HOUR_UTC", "9")
	t.Setenv("SNAPSHOT_REPAIR_WORKERS", "8")
	t.Setenv("JOB_WORKERS", "2")
	t.Setenv("EVENTBUS_BUFFER", "64")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.WaiverBatchSize != 10 || cfg.WaiverMaxBatches != 3 || cfg.WaiverRunHourUTC != 9 {
		t.Fatalf("unexpected waiver settings: %+v", cfg)
	}
	if cfg.SnapshotRepairWorkers != 8 || cfg.JobWorkers != 2 || cfg.EventBusBuffer != 64 {
		t.Fatalf("unexpected worker settings: %+v", cfg)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"WAIVER_BATCH_SIZE", "0"},
		{"WAIVER_RUN_HOUR_UTC", "24"},
		{"LOCK_TTL", "0s"},
		{"LOCK_TTL", "soon"},
		{"CACHE_ENABLED", "maybe"},
		{"QSTASH_CIRCUIT_FAILURE_COUNT", "0"},
		{"ANUBIS_CIRCUIT_OPEN_TIMEOUT", "-1s"},
		{"EVENTBUS_MAX_RETRIES", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_QStashRequiresTargetAndToken(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("QSTASH_ENABLED", "true")
	t.Setenv("QSTASH_TOKEN", "qstash-token")
	t.Setenv("QSTASH_TARGET_BASE_URL", "https://roster.example.com")
	t.Setenv("INTERNAL_JOB_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when INTERNAL_JOB_TOKEN is empty with qstash enabled")
	}

	t.Setenv("INTERNAL_JOB_TOKEN", "job-token")
	t.Setenv("QSTASH_TIMEOUT", "4s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.QStashTimeout != 4*time.Second || cfg.QStashRetries != 3 {
		t.Fatalf("unexpected qstash settings: timeout=%s retries=%d", cfg.QStashTimeout, cfg.QStashRetries)
	}
}

func TestLoad_CORSOriginsParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadDotEnv_DoesNotOverrideAndIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("WAIVER_BATCH_SIZE=7\nAPP_SERVICE_NAME=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APP_SERVICE_NAME", "from-env")
	t.Setenv("WAIVER_BATCH_SIZE", "")
	if err := os.Unsetenv("WAIVER_BATCH_SIZE"); err != nil {
		t.Fatalf("unset: %v", err)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("WAIVER_BATCH_SIZE"); got != "7" {
		t.Fatalf("expected WAIVER_BATCH_SIZE from file, got %q", got)
	}
	if got := os.Getenv("APP_SERVICE_NAME"); got != "from-env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
}
