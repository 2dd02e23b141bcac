package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wzhhnet/esp32-mg-server/internal/client"
	"github.com/wzhhnet/esp32-mg-server/internal/config"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

func TestWithDefaultPort(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"192.168.4.1", "192.168.4.1:80"},
		{"192.168.4.1:8080", "192.168.4.1:8080"},
		{"device.local", "device.local:80"},
		{"fe80::1", "[fe80::1]:80"},
		{"[fe80::1]:8080", "[fe80::1]:8080"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, withDefaultPort(tt.in))
		})
	}
}

func TestResolveTarget_Registry(t *testing.T) {
	reg := config.NewRegistry(filepath.Join(t.TempDir(), "devices.yaml"))
	reg.Seen("kitchen", "10.0.0.5:8080")
	reg.SetNickname("kitchen", "fridge")

	tests := []struct {
		device string
		want   target
	}{
		{"kitchen", target{name: "kitchen", addr: "10.0.0.5:8080"}},
		{"fridge", target{addr: "10.0.0.5:8080"}},
		{"10.0.0.9", target{addr: "10.0.0.9:80"}},
	}
	for _, tt := range tests {
		t.Run(tt.device, func(t *testing.T) {
			got, err := resolveTarget(context.Background(), reg, tt.device)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTarget_DefaultDevice(t *testing.T) {
	reg := config.NewRegistry(filepath.Join(t.TempDir(), "devices.yaml"))
	reg.Seen("kitchen", "10.0.0.5:8080")
	reg.Preferences.DefaultDevice = "kitchen"

	got, err := resolveTarget(context.Background(), reg, "")
	require.NoError(t, err)
	assert.Equal(t, target{name: "kitchen", addr: "10.0.0.5:8080"}, got)
}

func TestOutcomeHint(t *testing.T) {
	tests := []struct {
		name    string
		outcome wifi.Outcome
		err     error
		want    string
	}{
		{"auth", wifi.Outcome{Kind: wifi.OutcomeFailed, Reason: "auth_fail"}, client.ErrProvisionFailed, "passphrase"},
		{"retries", wifi.Outcome{Kind: wifi.OutcomeFailed, Retries: 3}, client.ErrProvisionFailed, "3 attempts"},
		{"device timeout", wifi.Outcome{Kind: wifi.OutcomeTimeout}, client.ErrProvisionFailed, "in time"},
		{"deadline", wifi.Outcome{}, context.DeadlineExceeded, "--timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, outcomeHint(tt.outcome, tt.err), tt.want)
		})
	}
}

func TestDescribe(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, describe(plain))

	devErr := client.NewNetworkError("dial failed", errors.New("no route"))
	assert.Equal(t, client.GetShortErrorMessage(devErr), describe(devErr).Error())
}
