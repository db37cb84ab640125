package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ehdgml1/vehicle-sim/app"
	"github.com/ehdgml1/vehicle-sim/config"
	"github.com/ehdgml1/vehicle-sim/infra/logger"
)

var (
	cfgPath  string
	scenario string
	interval int
)

var rootCmd = &cobra.Command{
	Use:           "vehicle-sim",
	Short:         "Simulated vehicle publishing VSS signals over MQTT",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json); defaults and VSIM_ env only when empty")
	rootCmd.Flags().StringVarP(&scenario, "scenario", "s", "", "initial scenario, overrides simulator.mode")
	rootCmd.Flags().IntVarP(&interval, "interval", "i", 0, "publish interval in ms, overrides simulator.interval_ms")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if scenario != "" {
		cfg.Simulator.Mode = scenario
	}
	if interval != 0 {
		cfg.Simulator.IntervalMS = interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
