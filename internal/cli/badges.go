package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lockin-app/lockin/internal/app/engagement"
)

func init() {
	activityCmd.Flags().Int64VarP(&activityCount, "count", "n", 1, "How many times the activity happened")
	xpCmd.Flags().StringVar(&xpSource, "source", engagement.SourceManual, "XP source label")
	streakCmd.Flags().BoolVar(&streakIncrement, "increment", true, "Increment the streak")

	badgesCmd.AddCommand(listBadgesCmd, checkBadgesCmd)
	rootCmd.AddCommand(badgesCmd, activityCmd, xpCmd, streakCmd, levelCmd)
}

var (
	activityCount   int64
	xpSource        string
	streakIncrement bool
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Badge catalog and progress",
}

var listBadgesCmd = &cobra.Command{
	Use:     "list USER",
	Aliases: []string{"ls"},
	Short:   "Show every badge with the user's progress",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		badges, err := eng.BadgeProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(badges)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BADGE\tNAME\tPROGRESS\tXP\tEARNED")
		for _, b := range badges {
			earned := "-"
			if b.Earned {
				earned = b.UnlockedAt.In(eng.Location()).Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s %s\t%s\t%d/%d\t%d\t%s\n",
				b.Emoji, b.ID, b.Name, min(b.Current, b.Requirement.Value), b.Requirement.Value, b.XPReward, earned)
		}
		return w.Flush()
	},
}

var checkBadgesCmd = &cobra.Command{
	Use:   "check USER",
	Short: "Re-evaluate badges and award any newly met",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		badges, err := eng.CheckBadgeProgress(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(badges)
		}
		if len(badges) == 0 {
			fmt.Println("No new badges.")
			return nil
		}
		printBadges(badges)
		return nil
	},
}

var activityCmd = &cobra.Command{
	Use:   "activity USER KIND",
	Short: "Log a behavioral activity (resist, phone_free_meal, ...)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		badges, err := eng.LogActivity(cmd.Context(), args[0], engagement.ActivityKind(args[1]), activityCount)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(badges)
		}
		fmt.Printf("logged %s x%d\n", args[1], activityCount)
		printBadges(badges)
		return nil
	},
}

var xpCmd = &cobra.Command{
	Use:   "xp USER AMOUNT",
	Short: "Award XP to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("amount must be an integer: %w", err)
		}

		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		res, err := eng.AwardXP(cmd.Context(), args[0], amount, xpSource, nil)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("+%d XP (%s)\n", res.XPAwarded, xpSource)
		if res.LeveledUp {
			fmt.Printf("  ⬆️  Level up! Now level %d\n", res.NewLevel)
		}
		printShield(res.ShieldEarned)
		printBadges(res.BadgesEarned)
		return nil
	},
}

var streakCmd = &cobra.Command{
	Use:   "streak USER",
	Short: "Update a user's streak and re-evaluate badges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		res, err := eng.UpdateStreak(cmd.Context(), args[0], streakIncrement)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("🔥 Streak: %d days (x%.1f)\n", res.Streak, engagement.StreakMultiplier(res.Streak))
		printShield(res.ShieldEarned)
		printBadges(res.BadgesEarned)
		return nil
	},
}

var levelCmd = &cobra.Command{
	Use:   "level XP",
	Short: "Show the level, title and rewards for an XP total",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		xp, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || xp < 0 || xp > engagement.MaxTotalXP {
			return fmt.Errorf("xp must be an integer in 0..%d", engagement.MaxTotalXP)
		}
		info := engagement.LevelFromXP(xp)
		rewards := engagement.LevelRewards(info.Level)
		if jsonOutput {
			return printJSON(map[string]any{"level": info, "rewards": rewards})
		}
		fmt.Println(renderLevel(info))
		for _, r := range rewards {
			fmt.Printf("  unlocks %s\n", r)
		}
		return nil
	},
}
