package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lokoweb3/skillbot/internal/types"
)

var (
	proposalsStatus   string
	proposalsSkill    string
	proposalsSeverity string
)

var proposalsCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List and manage self-improvement proposals",
}

var proposalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proposals, optionally filtered",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		filter := types.ProposalFilter{
			Status:   types.ProposalStatus(proposalsStatus),
			Skill:    proposalsSkill,
			Severity: types.Severity(proposalsSeverity),
		}
		list := a.loop.ListProposals(filter)
		data, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(data))
	},
}

var proposalsApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a pending proposal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		if err := a.loop.Approve(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("approved")
	},
}

var proposalsRejectCmd = &cobra.Command{
	Use:   "reject <id> [reason]",
	Short: "Reject a pending proposal",
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
		if err := a.loop.Reject(args[0], reason); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("rejected")
	},
}

func init() {
	proposalsListCmd.Flags().StringVar(&proposalsStatus, "status", "", "filter by status")
	proposalsListCmd.Flags().StringVar(&proposalsSkill, "skill", "", "filter by skill")
	proposalsListCmd.Flags().StringVar(&proposalsSeverity, "severity", "", "filter by severity")

	proposalsCmd.AddCommand(proposalsListCmd)
	proposalsCmd.AddCommand(proposalsApproveCmd)
	proposalsCmd.AddCommand(proposalsRejectCmd)
	rootCmd.AddCommand(proposalsCmd)
}
