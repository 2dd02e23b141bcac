// Package logging provides structured logging for the provisioning daemon and
// its command-line client.
//
// This package wraps a zap logger with package-level convenience functions and
// a few domain helpers for the events the daemon cares about: state machine
// transitions, radio driver calls, and RPC requests from the transport layer.
//
// # Log Levels
//
//   - Debug: Radio notifications, driver calls, keepalives, raw frames
//   - Info: State transitions, provisioning outcomes, client connections
//   - Warn: Retries, rejected requests, persistence retries
//   - Error: Driver failures, startup failures
//
// # Structured Logging
//
//	logging.Info("Address acquired",
//	    zap.String("ssid", "home"),
//	    zap.String("ip", "10.0.0.5"),
//	)
//
// Domain helpers keep field names consistent:
//
//	logging.LogTransition("idle", "connecting", "provision")
//	logging.LogDriverCommand("connect", err)
//	logging.LogRPC(remoteAddr, "wifi.provision", err)
//
// Credentials never reach the log: callers pass Credentials values whose
// String method redacts the passphrase.
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// With an empty level the WIFIPROV_LOG_LEVEL environment variable is consulted;
// if that is unset too the logger is silent. InitializeWithOptions can
// additionally tee output into a size-rotated file:
//
//	logging.InitializeWithOptions(logging.Options{
//	    Level:      "info",
//	    File:       "/var/log/wifiprovd.log",
//	    MaxSizeMB:  10,
//	    MaxBackups: 5,
//	})
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
