package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var correctCmd = &cobra.Command{
	Use:   "correct <skill> <reason>",
	Short: "Record a correction against a skill's prior behavior",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		correction, err := a.loop.RecordCorrection(args[0], nil, nil, args[1], nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		data, _ := json.MarshalIndent(correction, "", "  ")
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(correctCmd)
}
