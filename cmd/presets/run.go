package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aguther/aircraft/internal/config"
	"github.com/aguther/aircraft/internal/loader"
	"github.com/aguther/aircraft/internal/telemetry"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [presetId]",
	Short: "Run the tick loop, optionally requesting a preset immediately",
	Long: `Starts the extension tick loop against an in-memory variable store.
If a preset id is given it is requested on the first tick; otherwise the
loop waits for load requests via the request variable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, _ := cmd.Flags().GetString("config-dir")
		onGround, _ := cmd.Flags().GetBool("on-ground")

		a, err := setupApp(configDir)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.handler.Initialize(); err != nil {
			return err
		}
		a.monitor.Start()

		a.vars.SetBool(loader.OnGroundVar, onGround)

		if len(args) > 0 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid preset id %q: %w", args[0], err)
			}
			a.vars.SetInt(loader.RequestVar, id)
		}

		return runLoop(a)
	},
}

// runLoop drives the extension at the configured tick rate until the
// process is interrupted.
func runLoop(a *app) error {
	tickRate := config.GetInt("tickRateHz")
	if tickRate <= 0 {
		tickRate = 18
	}
	interval := time.Second / time.Duration(tickRate)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("Tick loop started", "rateHz", tickRate)

	last := time.Now()
	for {
		select {
		case sig := <-sigCh:
			a.logger.Info("Shutting down", "signal", sig.String())
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now

			tickStart := time.Now()
			a.handler.Update(dt)

			if a.telemetry != nil && a.telemetry.IsValid && a.handler.Ticks()%uint64(tickRate) == 0 {
				point := telemetry.NewTickPoint(time.Since(tickStart), 1)
				if err := a.telemetry.WritePoint(context.Background(), "extension_performance", point); err != nil {
					a.logger.Warn("Failed to write tick telemetry", "error", err)
				}
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("on-ground", true, "Report the aircraft as on the ground")
}
