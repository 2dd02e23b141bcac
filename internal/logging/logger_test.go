package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitialize_SilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger should be silent when no level is configured")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "warn")
	if err := InitializeFromEnv(); err != nil {
		t.Fatalf("InitializeFromEnv() error = %v", err)
	}
	defer SetLogger(zap.NewNop())

	if GetLogger().Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !GetLogger().Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn should be enabled at warn level")
	}
}

func TestInitialize_RejectsUnknown(t *testing.T) {
	if err := InitializeWithOptions(Options{Level: "info", Encoding: "xml"}); err == nil {
		t.Error("InitializeWithOptions() with xml encoding should fail")
	}
	if err := Initialize("loud"); err == nil {
		t.Error("Initialize(loud) should fail")
	}
}

func TestInitialize_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wifiprovd.log")
	if err := InitializeWithOptions(Options{Level: "info", File: path}); err != nil {
		t.Fatalf("InitializeWithOptions() error = %v", err)
	}
	defer SetLogger(zap.NewNop())

	Info("hello file")
	Sync()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if info.Size() == 0 {
		t.Error("log file is empty")
	}
}

func TestDomainHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(zap.NewNop())

	LogTransition("idle", "connecting", "provision")
	LogDriverCommand("connect", nil)
	LogDriverCommand("scan", errors.New("radio off"))
	LogRPC("10.0.0.9:5555", "wifi.scan", nil)

	if got := logs.FilterMessage("State transition").Len(); got != 1 {
		t.Errorf("transition entries = %d, want 1", got)
	}
	if got := logs.FilterMessage("Radio driver call failed").FilterField(zap.String("call", "scan")).Len(); got != 1 {
		t.Errorf("failed driver call entries = %d, want 1", got)
	}
	if got := logs.FilterLevelExact(zapcore.DebugLevel).Len(); got != 1 {
		t.Errorf("debug entries = %d, want 1", got)
	}
	if got := logs.FilterMessage("RPC request").Len(); got != 1 {
		t.Errorf("rpc entries = %d, want 1", got)
	}
}

func TestRedactPass(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"method":"wifi.provision","params":{"ssid":"HomeNet","pass":"correct horse"}}`,
			`{"method":"wifi.provision","params":{"ssid":"HomeNet","pass":"***"}}`},
		{`{"pass" : "a\"b"}`, `{"pass" : "***"}`},
		{`{"method":"wifi.status"}`, `{"method":"wifi.status"}`},
	}
	for _, tt := range tests {
		if got := string(redactPass([]byte(tt.in))); got != tt.want {
			t.Errorf("redactPass(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
