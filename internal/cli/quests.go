package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lockin-app/lockin/internal/domain"
)

func init() {
	assignQuestCmd.Flags().StringVar(&questDescription, "description", "", "Quest description")
	assignQuestCmd.Flags().StringVar(&questDifficulty, "difficulty", string(domain.DifficultyEasy), "easy, medium or hard")
	assignQuestCmd.Flags().Int64Var(&questXP, "xp", 25, "XP reward")
	assignQuestCmd.Flags().StringVar(&questID, "id", "", "Quest id (default: generated)")

	questsCmd.AddCommand(dailyQuestsCmd, checkQuestCmd, listQuestsCmd, assignQuestCmd, completeQuestCmd)
	rootCmd.AddCommand(questsCmd)
}

var (
	questDescription string
	questDifficulty  string
	questXP          int64
	questID          string
)

var questsCmd = &cobra.Command{
	Use:     "quests",
	Aliases: []string{"quest"},
	Short:   "Daily and structured quests",
}

var dailyQuestsCmd = &cobra.Command{
	Use:   "daily USER",
	Short: "Show today's quests and progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		quests, err := eng.GenerateDailyQuests(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(quests)
		}
		for _, q := range quests {
			fmt.Printf("%s  +%d XP  (%s)\n", renderQuest(q), q.XPReward, q.ID)
		}
		return nil
	},
}

var checkQuestCmd = &cobra.Command{
	Use:   "check USER QUEST",
	Short: "Claim a completed daily quest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		res, err := eng.CheckDailyQuestCompletion(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		switch {
		case !res.Completed:
			fmt.Printf("%s not complete yet (%.0f%%)\n", res.Quest.Title, res.Quest.Progress)
		case res.AlreadyAwarded:
			fmt.Printf("%s already claimed today\n", res.Quest.Title)
		default:
			fmt.Printf("%s complete: +%d XP\n", res.Quest.Title, res.XPAwarded)
			printBadges(res.BadgesEarned)
		}
		return nil
	},
}

var listQuestsCmd = &cobra.Command{
	Use:     "list USER",
	Aliases: []string{"ls"},
	Short:   "List a user's structured quests",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		quests, err := eng.Quests(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(quests)
		}
		if len(quests) == 0 {
			fmt.Println("No quests assigned.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tDIFFICULTY\tXP\tDONE")
		for _, q := range quests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\n", q.ID, q.Title, q.Difficulty, q.XPReward, q.Completed)
		}
		return w.Flush()
	},
}

var assignQuestCmd = &cobra.Command{
	Use:   "assign USER TITLE",
	Short: "Assign a structured quest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		q, err := eng.AssignQuest(cmd.Context(), args[0], domain.Quest{
			ID:          questID,
			Title:       args[1],
			Description: questDescription,
			Difficulty:  domain.QuestDifficulty(questDifficulty),
			XPReward:    questXP,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(q)
		}
		fmt.Printf("assigned %s (%s, +%d XP)\n", q.ID, q.Difficulty, q.XPReward)
		return nil
	},
}

var completeQuestCmd = &cobra.Command{
	Use:   "complete USER QUEST",
	Short: "Complete a structured quest and award its XP",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, done, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		res, err := eng.CompleteQuest(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("%s complete: +%d XP\n", res.Quest.Title, res.XPAwarded)
		if res.LeveledUp {
			fmt.Printf("  ⬆️  Level up! Now level %d\n", res.NewLevel)
		}
		printBadges(res.BadgesEarned)
		return nil
	},
}
