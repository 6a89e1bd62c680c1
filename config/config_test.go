package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOCK_TTL", "")
	t.Setenv("COD_CHARGE", "")
	t.Setenv("DISPATCH_MODE", "")

	cfg := Load()

	assert.Equal(t, 15*time.Minute, cfg.Business.LockTTL)
	assert.Equal(t, "50", cfg.Business.CODCharge.String())
	assert.Equal(t, DispatchLocal, cfg.Business.DispatchMode)
	assert.Equal(t, "none", cfg.Business.StockPolicy)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LOCK_TTL", "90s")
	t.Setenv("EXPIRY_SWEEP_INTERVAL", "0s")
	t.Setenv("PUBLIC_BASE_URL", "https://live.example.com/")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.Business.LockTTL)
	assert.Equal(t, time.Duration(0), cfg.Business.ExpirySweepInterval)
	assert.Equal(t, "https://live.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestGetDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("REMINDER_LEAD", "soon")
	assert.Equal(t, 5*time.Minute, getDuration("REMINDER_LEAD", 5*time.Minute))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "defaults"},
		{name: "kafka on payment", env: map[string]string{"DISPATCH_MODE": "Kafka", "STOCK_POLICY": "ON_PAYMENT"}},
		{name: "stock policy typo", env: map[string]string{"STOCK_POLICY": "on-payment"}, wantErr: "STOCK_POLICY"},
		{name: "dispatch mode typo", env: map[string]string{"DISPATCH_MODE": "rabbit"}, wantErr: "DISPATCH_MODE"},
		{name: "zero workers", env: map[string]string{"DISPATCH_WORKERS": "0"}, wantErr: "DISPATCH_WORKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"STOCK_POLICY", "DISPATCH_MODE", "DISPATCH_WORKERS", "LOCK_TTL"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
