package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dialpilot/pkg/channel"
	"dialpilot/pkg/channel/telegram"
	"dialpilot/pkg/channel/telnyx"
	"dialpilot/pkg/channel/twilio"
	"dialpilot/pkg/config"
	"dialpilot/pkg/gateway"
	"dialpilot/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auto-responder gateway",
	Long:  "Runs DialPilot as a webhook gateway with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		adapters, err := enabledAdapters(cfg, log)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, adapters, log)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started", "channels", enabledChannelNames(adapters), "mode", responderMode(cfg), "model", cfg.Responder.Model)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 3)

	if cfg.Channels.Twilio.Enabled {
		adapter, err := twilio.NewAdapter(cfg.Channels.Twilio, cfg.Business, log)
		if err != nil {
			return nil, fmt.Errorf("configure twilio channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Telnyx.Enabled {
		adapter, err := telnyx.NewAdapter(cfg.Channels.Telnyx, log)
		if err != nil {
			return nil, fmt.Errorf("configure telnyx channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, log)
		if err != nil {
			return nil, fmt.Errorf("configure telegram channel: %w", err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}

func responderMode(cfg *config.Config) string {
	if cfg.Responder.Mode == "" {
		return "conversation"
	}

	return cfg.Responder.Mode
}
