package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{RequestsPerWindow: 10, Window: time.Minute}, false},
		{"valid with burst", Config{RequestsPerWindow: 10, Window: time.Minute, BurstSize: 20}, false},
		{"zero requests", Config{Window: time.Minute}, true},
		{"negative requests", Config{RequestsPerWindow: -1, Window: time.Minute}, true},
		{"zero window", Config{RequestsPerWindow: 10}, true},
		{"negative burst", Config{RequestsPerWindow: 10, Window: time.Minute, BurstSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_EffectiveBurstSize(t *testing.T) {
	cfg := Config{RequestsPerWindow: 10, Window: time.Minute}
	if got := cfg.EffectiveBurstSize(); got != 10 {
		t.Errorf("EffectiveBurstSize() = %d, want 10", got)
	}
	cfg.BurstSize = 25
	if got := cfg.EffectiveBurstSize(); got != 25 {
		t.Errorf("EffectiveBurstSize() = %d, want 25", got)
	}
}

func TestUnlimited(t *testing.T) {
	allowed, retry, err := Unlimited{}.Allow(context.Background(), "any")
	if !allowed || retry != 0 || err != nil {
		t.Errorf("Unlimited.Allow() = (%v, %v, %v)", allowed, retry, err)
	}
}
