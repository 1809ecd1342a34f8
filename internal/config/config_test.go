package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, StoragePostgres, cfg.StorageDriver)
	require.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 2*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, "rythm-sessions", cfg.Tracing.Options().ServiceName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", " Memory ")
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092 ")
	t.Setenv("DLQ_BASE_DELAY", "5s")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, StorageMemory, cfg.StorageDriver)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 5*time.Second, cfg.DLQBaseDelay)
	require.True(t, cfg.Tracing.Enabled)
	require.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":     {"STORAGE_DRIVER": "sqlite"},
		"outbox on memory":   {"STORAGE_DRIVER": "memory", "OUTBOX_ENABLED": "true"},
		"malformed duration": {"OUTBOX_POLL_INTERVAL": "soon"},
		"zero batch":         {"OUTBOX_BATCH_SIZE": "0"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for key, value := range vars {
				t.Setenv(key, value)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
