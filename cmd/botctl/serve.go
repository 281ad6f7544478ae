package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lokoweb3/skillbot/internal/eventbus"
)

var serveAnalysisInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the router with periodic self-improvement analysis until interrupted",
	Long: `Start the wired router, gates, and improvement loop, print every
lifecycle event as it happens, and run an analysis cycle on a timer
until SIGINT/SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		cyan := color.New(color.FgCyan).SprintFunc()
		logEvent := func(ev eventbus.Event) {
			payload, _ := json.Marshal(ev.Payload)
			fmt.Printf("[%s][%s] %s\n", a.instanceID[:8], ev.Topic, string(payload))
		}
		for _, topic := range []string{
			"match", "no-match", "success", "error",
			"gate-pending", "verification-failed", "verification-rejected",
			"new-proposal", "analysis-complete",
			"fix-generating", "fix-ready", "fix-failed", "fix-approved", "fix-rejected",
			"fix-testing", "fix-deployed", "fix-rolled-back", "pipeline-complete",
		} {
			a.bus.On(topic, logEvent)
		}

		fmt.Printf("%s serving; analysis every %s; ctrl-c to stop\n", cyan("botctl"), serveAnalysisInterval)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		ticker := time.NewTicker(serveAnalysisInterval)
		defer ticker.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for {
			select {
			case <-sigChan:
				fmt.Println("shutting down")
				return
			case <-ticker.C:
				if _, err := a.loop.RunAnalysis(7); err != nil {
					fmt.Fprintf(os.Stderr, "analysis error: %v\n", err)
				}
			case <-ctx.Done():
				return
			}
		}
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveAnalysisInterval, "analysis-interval", 10*time.Minute, "how often to run the self-improvement analysis cycle")
	rootCmd.AddCommand(serveCmd)
}
