package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/config"
	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/nvs"
	"github.com/wzhhnet/esp32-mg-server/internal/record"
	"github.com/wzhhnet/esp32-mg-server/internal/version"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the provisioning daemon",
	Long: `Start the controller, the simulated radio and the HTTP server.

If a provisioning record is stored the device rejoins that network,
otherwise it waits in access-point mode for a client to submit
credentials. The daemon stops cleanly on SIGINT or SIGTERM.`,
	Example: `  # Run with the config file found in the default locations
  wifiprovd run

  # Listen on a different port and keep state in SQLite
  wifiprovd run --listen :8080 --store sqlite --store-path ./nvs.db

  # Verbose logging, in-memory store
  wifiprovd run --log-level debug --store memory`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().String("listen", "", "HTTP listen address (default :80)")
	runCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
	runCmd.Flags().Bool("no-mdns", false, "Do not announce the service over mDNS")
	runCmd.Flags().String("mqtt-broker", "", "MQTT broker URL for outcome publishing")
	_ = v.BindPFlag("http.listen", runCmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("log.level", runCmd.Flags().Lookup("log-level"))
	_ = v.BindPFlag("mqtt.broker", runCmd.Flags().Lookup("mqtt-broker"))
}

func initLogging(cfg config.LogConfig) error {
	return logging.InitializeWithOptions(logging.Options{
		Level:      cfg.Level,
		Encoding:   cfg.Encoding,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noMDNS, _ := cmd.Flags().GetBool("no-mdns"); noMDNS {
		cfg.MDNS.Enable = false
	}
	if err := initLogging(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	logging.Info("Starting wifiprovd",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
	)

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = d.shutdown(shutdownCtx)
		return err
	}

	<-ctx.Done()
	logging.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.shutdown(shutdownCtx); err != nil {
		logging.Error("Shutdown incomplete", zap.Error(err))
		return err
	}
	return nil
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the stored provisioning record",
	Long: `Erase the provisioning record so the next start comes up in
access-point mode waiting for credentials. Stop the daemon first.`,
	Example: `  wifiprovd reset
  wifiprovd reset --store sqlite --store-path ./nvs.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		rec, err := resetRecord(cfg.Store)
		if err != nil {
			return err
		}
		if rec.Provisioned() {
			fmt.Printf("Erased provisioning record for %q\n", rec.SSID)
		} else {
			fmt.Println("No provisioning record stored")
		}
		return nil
	},
}

// resetRecord erases the record and returns what was stored before.
func resetRecord(cfg config.StoreConfig) (record.Record, error) {
	store, err := nvs.Open(cfg.Backend, cfg.Path)
	if err != nil {
		return record.Record{}, fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	records := record.NewStore(store)
	prev, err := records.Read()
	if err != nil {
		// A corrupt record is exactly what reset is for.
		prev = record.Record{}
	}
	if err := records.Erase(); err != nil {
		return record.Record{}, err
	}
	return prev, nil
}
