package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lockin-app/lockin/internal/domain"
)

func init() {
	sessionCmd.AddCommand(recordSessionCmd, moodCmd, todayCmd)
	rootCmd.AddCommand(sessionCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Record and inspect focus sessions",
}

var recordSessionCmd = &cobra.Command{
	Use:   "record USER MINUTES",
	Short: "Record a completed focus session and award its XP",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("minutes must be an integer: %w", err)
		}

		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		res, err := eng.RecordSession(cmd.Context(), args[0], minutes)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}

		fmt.Printf("Session %s: +%d XP\n", res.SessionID, res.XPAwarded)
		if res.StreakIncremented {
			fmt.Printf("  🔥 Streak: %d days\n", res.Streak)
		}
		if res.LeveledUp {
			fmt.Printf("  ⬆️  Level up! Now level %d\n", res.NewLevel)
		}
		printShield(res.ShieldEarned)
		printBadges(res.BadgesEarned)
		fmt.Printf("Today: %d sessions, %d min, %d XP\n", res.Today.Sessions, res.Today.Minutes, res.Today.XP)
		return nil
	},
}

var moodCmd = &cobra.Command{
	Use:   "mood USER SESSION MOOD",
	Short: "Rate a recorded session (hard, okay, good, amazing)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		if err := eng.UpdateSession(cmd.Context(), args[0], args[1], domain.Mood(args[2])); err != nil {
			return err
		}
		fmt.Printf("session %s rated %s\n", args[1], args[2])
		return nil
	},
}

var todayCmd = &cobra.Command{
	Use:   "today USER",
	Short: "List today's sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		sessions, agg, err := eng.TodaySessions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"sessions": sessions, "today": agg})
		}
		if len(sessions) == 0 {
			fmt.Printf("No sessions today. Run 'lockin session record %s MINUTES' to log one.\n", args[0])
			return nil
		}

		loc := eng.Location()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIME\tMINUTES\tXP\tMOOD")
		for _, s := range sessions {
			mood := string(s.Mood)
			if mood == "" {
				mood = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
				s.ID,
				s.Timestamp.In(loc).Format("15:04"),
				s.DurationMinutes,
				s.XPEarned,
				mood,
			)
		}
		fmt.Fprintf(w, "TOTAL\t\t%d\t%d\t\n", agg.Minutes, agg.XP)
		return w.Flush()
	},
}
