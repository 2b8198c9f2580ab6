/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"dialpilot/pkg/backend"
	"dialpilot/pkg/config"
	"dialpilot/pkg/logger"
	"dialpilot/pkg/session"
	"dialpilot/pkg/session/store"
	"dialpilot/pkg/tools"
	"dialpilot/pkg/tools/calc"

	"github.com/spf13/cobra"
)

var messageText string

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message or start an interactive chat",
	Long:  "Loads DialPilot configuration, connects to the generation backend, and sends one message or starts an interactive chat as a local sender.",
	Run: func(cmd *cobra.Command, args []string) {
		message := resolveMessage(args)

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

		client, err := backend.New(cfg)
		if err != nil {
			fmt.Printf("failed to initialize backend: %v\n", err)
			return
		}

		ctx := context.Background()
		if err := client.Health(ctx); err != nil {
			fmt.Printf("backend health check failed: %v\n", err)
			return
		}

		registry := tools.NewRegistry(slog.Default())
		registry.Register(calc.New())

		responder := session.NewManager(client, store.NewMemoryStore(), registry, nil, cfg.Responder, slog.Default())

		if message != "" {
			runSingleMessage(ctx, responder, message)
			return
		}

		runInteractive(ctx, responder)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&messageText, "message", "m", "", "message text to send")
}

func resolveMessage(args []string) string {
	if value := strings.TrimSpace(messageText); value != "" {
		return value
	}

	if len(args) == 0 {
		return ""
	}

	value := strings.TrimSpace(strings.Join(args, " "))
	if value == "" {
		return ""
	}

	return value
}

func runSingleMessage(ctx context.Context, responder session.Responder, message string) {
	reply, err := responder.Reply(ctx, "cli", "local", message)
	if err != nil {
		fmt.Printf("reply failed: %v\n", err)
		return
	}

	fmt.Println(reply)
}

func runInteractive(ctx context.Context, responder session.Responder) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Printf("input error: %v\n", err)
			}
			return
		}

		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if isExitCommand(message) {
			return
		}

		reply, err := responder.Reply(ctx, "cli", "local", message)
		if err != nil {
			fmt.Printf("reply failed: %v\n", err)
			continue
		}

		printAssistantMessage(reply)
	}
}

func printAssistantMessage(message string) {
	lines := assistantLines(message)
	for _, line := range lines {
		fmt.Printf("ai: %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Println()
	}
}

func assistantLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
