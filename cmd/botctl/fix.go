package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lokoweb3/skillbot/internal/autofix"
	"github.com/lokoweb3/skillbot/internal/errorlog"
	"github.com/lokoweb3/skillbot/internal/types"
)

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Generate, approve, reject, and apply auto-fixes",
}

var fixListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored fixes",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		data, _ := json.MarshalIndent(a.fixes.Fixes(), "", "  ")
		fmt.Println(string(data))
	},
}

var fixGenerateCmd = &cobra.Command{
	Use:   "generate <proposal-id>",
	Short: "Generate a patch for a pending proposal",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		var proposal *types.Proposal
		for _, p := range a.loop.ListProposals(types.ProposalFilter{}) {
			if p.ID == args[0] {
				pp := p
				proposal = &pp
				break
			}
		}
		if proposal == nil {
			fmt.Fprintf(os.Stderr, "unknown proposal %q\n", args[0])
			os.Exit(1)
		}

		var errorRecord types.OutcomeRecord
		if fingerprint, ok := proposal.Data["fingerprint"].(string); ok {
			records, err := a.logger.Query(errorlog.QueryFilter{Fingerprint: fingerprint, Days: 90})
			if err == nil && len(records) > 0 {
				errorRecord = records[len(records)-1]
			}
		}

		corrections := a.loop.Corrections()
		var recent []types.Correction
		for _, c := range corrections {
			if c.Skill == proposal.Skill {
				recent = append(recent, c)
			}
		}

		fix, err := a.fixes.GenerateFix(autofix.GenerateInput{
			Proposal:          proposal,
			ErrorRecord:       errorRecord,
			RecentCorrections: recent,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		data, _ := json.MarshalIndent(fix, "", "  ")
		fmt.Println(string(data))
	},
}

var fixApproveCmd = &cobra.Command{
	Use:   "approve <fix-id>",
	Short: "Approve a ready fix",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		if err := a.fixes.ApproveFix(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("approved")
	},
}

var fixRejectCmd = &cobra.Command{
	Use:   "reject <fix-id>",
	Short: "Reject a ready fix",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		if err := a.fixes.RejectFix(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("rejected")
	},
}

var fixApplyCmd = &cobra.Command{
	Use:   "apply <fix-id>",
	Short: "Apply an approved fix: backup, overwrite, test, deploy or roll back",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		var fixID string
		for _, f := range a.fixes.Fixes() {
			if f.ID == args[0] {
				fixID = f.ID
				break
			}
		}
		if fixID == "" {
			fmt.Fprintf(os.Stderr, "unknown fix %q\n", args[0])
			os.Exit(1)
		}

		err = a.fixes.ApplyFix(fixID, a.loop.MarkApplied)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("applied")
	},
}

func init() {
	fixCmd.AddCommand(fixListCmd)
	fixCmd.AddCommand(fixGenerateCmd)
	fixCmd.AddCommand(fixApproveCmd)
	fixCmd.AddCommand(fixRejectCmd)
	fixCmd.AddCommand(fixApplyCmd)
	rootCmd.AddCommand(fixCmd)
}
