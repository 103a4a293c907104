// Package app contains the Cobra command tree for habitboard.
package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/habitboard/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "habitboard",
	Short: "Habit goal dashboard for TRMNL displays backed by Home Assistant",
	Long: `habitboard discovers habit goals from Home Assistant labels, reconstructs
weekly completion counts from counter history, and serves a pacing dashboard
to TRMNL e-ink displays.

Goals are configured entirely on the hub: create a label named like
goal_4_per_week with a JSON description such as {"weekly_target": 4} and
attach it to a counter entity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("habitboard", appVersion)
		fmt.Println()
		fmt.Println("Use a subcommand:")
		fmt.Println("  serve     Run the dashboard server")
		fmt.Println("  goals     Discover goals and print this week's progress")
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/habitboard/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	cobra.OnInitialize(func() {
		if flagNoColor {
			output.SetNoColor(true)
		}
	})
}
