package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var gatesStatsDays int

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "Resolve pending gates and inspect gate statistics",
}

var gatesApproveCmd = &cobra.Command{
	Use:   "approve <gate-id>",
	Short: "Approve a pending gate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		ok := a.gates.Approve(args[0], nil)
		if !ok {
			fmt.Fprintf(os.Stderr, "no pending gate %q\n", args[0])
			os.Exit(1)
		}
		fmt.Println("approved")
	},
}

var gatesRejectCmd = &cobra.Command{
	Use:   "reject <gate-id> [reason]",
	Short: "Reject a pending gate",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		reason := ""
		if len(args) > 1 {
			reason = args[1]
		}
		ok := a.gates.Reject(args[0], reason)
		if !ok {
			fmt.Fprintf(os.Stderr, "no pending gate %q\n", args[0])
			os.Exit(1)
		}
		fmt.Println("rejected")
	},
}

var gatesPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List gates currently suspended awaiting resolution",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		data, _ := json.MarshalIndent(a.gates.Pending(), "", "  ")
		fmt.Println(string(data))
	},
}

var gatesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show gate resolution statistics and auto-approval candidates",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		stats, candidates, err := a.gates.Statistics(gatesStatsDays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		data, _ := json.MarshalIndent(map[string]interface{}{
			"statistics": stats,
			"candidates": candidates,
		}, "", "  ")
		fmt.Println(string(data))
	},
}

func init() {
	gatesStatsCmd.Flags().IntVar(&gatesStatsDays, "days", 7, "number of audit-trail days to aggregate")

	gatesCmd.AddCommand(gatesApproveCmd)
	gatesCmd.AddCommand(gatesRejectCmd)
	gatesCmd.AddCommand(gatesPendingCmd)
	gatesCmd.AddCommand(gatesStatsCmd)
	rootCmd.AddCommand(gatesCmd)
}
