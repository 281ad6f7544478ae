package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var analyzeLookbackDays int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one self-improvement analysis cycle",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		insights, err := a.loop.RunAnalysis(analyzeLookbackDays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		data, _ := json.MarshalIndent(insights, "", "  ")
		fmt.Println(string(data))
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeLookbackDays, "days", 7, "lookback window in days")
	rootCmd.AddCommand(analyzeCmd)
}
