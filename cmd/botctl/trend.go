package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show the metrics trend and recent snapshots",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := loadApp()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer a.close()

		snapshots := a.loop.Metrics()
		if len(snapshots) > 0 {
			last := snapshots[len(snapshots)-1]
			fmt.Printf("trend: %s (last snapshot %s, %s insights, %s proposals)\n",
				a.loop.Trend(), humanize.Time(last.Timestamp),
				humanize.Comma(int64(last.InsightCount)), humanize.Comma(int64(last.ProposalCount)))
		}

		data, _ := json.MarshalIndent(map[string]interface{}{
			"trend":     a.loop.Trend(),
			"snapshots": snapshots,
		}, "", "  ")
		fmt.Println(string(data))
	},
}

func init() {
	rootCmd.AddCommand(trendCmd)
}
