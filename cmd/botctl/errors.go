package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lokoweb3/skillbot/internal/errorlog"
)

var (
	errorsSkill          string
	errorsClassification string
	errorsFingerprint    string
	errorsMinOccurrences int
	errorsDays           int
	errorsTopK           int
	errorsHuman          bool
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Query captured error and success records",
}

var errorsQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query records matching a filter",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		records, err := a.logger.Query(errorlog.QueryFilter{
			Skill:          errorsSkill,
			Classification: errorsClassification,
			Fingerprint:    errorsFingerprint,
			MinOccurrences: errorsMinOccurrences,
			Days:           errorsDays,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		data, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(data))
	},
}

var errorsRecurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Show the top recurring error fingerprints",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		entries, err := a.logger.RecurringErrors(errorsTopK, errorsDays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if errorsHuman {
			for _, e := range entries {
				fmt.Printf("%s  %s occurrences, last seen %s (%s)\n",
					e.Fingerprint, humanize.Comma(int64(e.Count)), humanize.Time(e.Latest.Timestamp), e.Latest.Skill)
			}
			return
		}

		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
	},
}

func init() {
	errorsQueryCmd.Flags().StringVar(&errorsSkill, "skill", "", "filter by skill")
	errorsQueryCmd.Flags().StringVar(&errorsClassification, "classification", "", "filter by classification")
	errorsQueryCmd.Flags().StringVar(&errorsFingerprint, "fingerprint", "", "filter by fingerprint")
	errorsQueryCmd.Flags().IntVar(&errorsMinOccurrences, "min-occurrences", 0, "minimum occurrence count")
	errorsQueryCmd.Flags().IntVar(&errorsDays, "days", 7, "number of day-files to scan")

	errorsRecurringCmd.Flags().IntVar(&errorsTopK, "top", 10, "number of fingerprints to return (0 = all)")
	errorsRecurringCmd.Flags().IntVar(&errorsDays, "days", 7, "number of day-files to scan")
	errorsRecurringCmd.Flags().BoolVar(&errorsHuman, "human", false, "print human-readable text instead of JSON")

	errorsCmd.AddCommand(errorsQueryCmd)
	errorsCmd.AddCommand(errorsRecurringCmd)
	rootCmd.AddCommand(errorsCmd)
}
