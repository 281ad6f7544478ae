package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route <message>",
	Short: "Dispatch a message through the router and print the outcome",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		message := args[0]
		for _, a := range args[1:] {
			message += " " + a
		}

		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		outcome := a.router.Route(context.Background(), message, message)
		data, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Println(string(data))
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive router shell",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		if err := runShell(a); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(shellCmd)
}
