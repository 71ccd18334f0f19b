package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lockin-app/lockin/internal/domain"
)

func init() {
	settingsCmd.Flags().Int("goal", 0, "Daily screen time goal in hours (0-24)")
	settingsCmd.Flags().Bool("notifications", true, "Enable notifications")
	settingsCmd.Flags().Bool("check-in", true, "Enable the daily check-in")

	deleteUserCmd.Flags().BoolVarP(&deleteConfirm, "yes", "y", false, "Skip the confirmation check")

	userCmd.AddCommand(createUserCmd, showUserCmd, deleteUserCmd, settingsCmd)
	rootCmd.AddCommand(userCmd)
}

var deleteConfirm bool

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user progression documents",
}

var createUserCmd = &cobra.Command{
	Use:   "create USER",
	Short: "Create a user progression document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		u, created, err := eng.CreateUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(u)
		}
		if created {
			fmt.Printf("Created %s (%s %s, level %d)\n", u.UserID, u.TitleEmoji, u.Title, u.Level)
		} else {
			fmt.Printf("%s already exists\n", u.UserID)
		}
		return nil
	},
}

var showUserCmd = &cobra.Command{
	Use:   "show USER",
	Short: "Show a user's level, streak, shields and stats",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		p, err := eng.Profile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(p)
		}

		fmt.Printf("User:       %s\n", p.UserID)
		fmt.Printf("Level:      %s\n", renderLevel(p.LevelInfo))
		fmt.Printf("Total XP:   %d\n", p.TotalXP)
		fmt.Printf("Streak:     %d days (x%.1f)\n", p.Streak, p.Multiplier)
		fmt.Printf("Shields:    %d\n", len(p.Shields))
		fmt.Printf("Badges:     %d\n", len(p.Badges))
		fmt.Printf("Sessions:   %d (%d min, longest %d min)\n",
			p.Stats.TotalSessions, p.Stats.TotalMinutes, p.Stats.LongestSession)
		fmt.Printf("Quests:     %d (daily streak %d)\n", p.Stats.QuestsCompleted, p.Stats.DailyQuestStreak)
		fmt.Printf("Created:    %s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var deleteUserCmd = &cobra.Command{
	Use:     "delete USER",
	Aliases: []string{"rm"},
	Short:   "Delete a user and purge every progression record",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteConfirm {
			return fmt.Errorf("refusing to delete %s without --yes", args[0])
		}
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		report, err := eng.DeleteAccount(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(report)
		}
		fmt.Printf("deleted %s: %d sessions, %d xp transactions, %d badge events, %d quests\n",
			args[0], report.Sessions, report.XPTransactions, report.BadgeEvents, report.Quests)
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings USER",
	Short: "Update a user's settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch domain.SettingsPatch
		if cmd.Flags().Changed("goal") {
			v, _ := cmd.Flags().GetInt("goal")
			patch.ScreenTimeGoalHours = &v
		}
		if cmd.Flags().Changed("notifications") {
			v, _ := cmd.Flags().GetBool("notifications")
			patch.Notifications = &v
		}
		if cmd.Flags().Changed("check-in") {
			v, _ := cmd.Flags().GetBool("check-in")
			patch.DailyCheckIn = &v
		}

		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		s, err := eng.UpdateSettings(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(s)
		}
		fmt.Printf("Screen time goal: %dh\n", s.ScreenTimeGoalHours)
		fmt.Printf("Notifications:    %t\n", s.Notifications)
		fmt.Printf("Daily check-in:   %t\n", s.DailyCheckIn)
		return nil
	},
}
