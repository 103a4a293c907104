package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/habitboard/internal/config"
	"github.com/blackwell-systems/habitboard/internal/goal"
	"github.com/blackwell-systems/habitboard/internal/hub"
	"github.com/blackwell-systems/habitboard/internal/output"
	"github.com/blackwell-systems/habitboard/internal/progress"
	"github.com/blackwell-systems/habitboard/internal/tracker"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Discover goals and print this week's progress",
	Long: `Connect to the hub once, discover goal labels, reconstruct this week's
completion counts from counter history, and print the result.

Useful for checking hub-side goal configuration without running the
server.`,
	RunE: runGoals,
}

func init() {
	rootCmd.AddCommand(goalsCmd)
}

func runGoals(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Hub.Token == "" {
		return errors.New("hub.token is not set (HABITBOARD_HUB_TOKEN or config.yaml)")
	}

	// One-shot command: keep log noise out of the table.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	weekStart, err := progress.ParseWeekStart(cfg.WeekStart)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client := hub.NewClient(cfg.Hub.URL, cfg.Hub.Token, cfg.Hub.Timeout, log)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	discoverer := goal.NewDiscoverer(client, log)
	trk := tracker.New(discoverer, client, weekStart, cfg.CacheDuration, log)

	snap := trk.Snapshot(ctx, true)
	if !snap.Valid {
		return errors.New("could not compute a snapshot; check hub connectivity")
	}

	fmt.Println(output.Section(fmt.Sprintf("Week of %s  (day %d of 7, %d days left)",
		snap.Window.Start.Format("Jan 02"), snap.Window.DayOfWeek+1, snap.Window.DaysLeft)))
	fmt.Println()

	if len(snap.Goals) == 0 {
		fmt.Println("No goals found.")
		fmt.Println()
		fmt.Println("To create one on the hub:")
		fmt.Println(`  1. Create a label named like goal_4_per_week`)
		fmt.Println(`  2. Set its description to: {"weekly_target": 4}`)
		fmt.Println(`  3. Attach the label to a counter entity`)
		return nil
	}

	table := output.NewTable("GOAL", "PROGRESS", "EXPECTED", "STATUS")
	for _, g := range snap.Goals {
		name := g.FriendlyName
		if g.Emoji != "" {
			name = g.Emoji + " " + name
		}
		table.AddRow(
			name,
			output.GoalBar(g.CurrentCount, g.WeeklyTarget, 14),
			fmt.Sprintf("%.1f", g.TargetByNow),
			output.StatusBadge(g.Status),
		)
	}
	table.Print()

	fmt.Println()
	fmt.Println(output.StyleMuted.Render("Computed " + snap.ComputedAt.Format(time.Kitchen)))
	return nil
}
