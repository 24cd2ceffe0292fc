package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumen-app/lumen/internal/app/progression"
	"github.com/lumen-app/lumen/internal/domain"
)

func init() {
	reflectCmd.Flags().StringVar(&reflectDate, "date", "", `Day to answer for, "2006-01-02" (default today)`)
	rootCmd.AddCommand(reflectCmd)
}

var reflectDate string

var reflectCmd = &cobra.Command{
	Use:   "reflect <slot> <text>",
	Short: "Answer one slot of the daily reflection",
	Long: `Answer one of the three daily reflection slots: gratitude,
highlight, or intention. The day's reflection completes when all
three are answered.`,
	Args: cobra.ExactArgs(2),
	RunE: runReflect,
}

func runReflect(cmd *cobra.Command, args []string) error {
	dateKey := reflectDate
	if dateKey == "" {
		dateKey = progression.DateKey(time.Now())
	}

	db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	entry, err := svc.Recorder.SaveReflectionAnswer(userID, dateKey, domain.ReflectionSlot(args[0]), args[1])
	if err != nil {
		return err
	}

	if !entry.Completed {
		fmt.Printf("Saved %s for %s\n", args[0], dateKey)
		return nil
	}
	fmt.Printf("Reflection for %s complete\n", dateKey)

	granted, err := svc.Quests.ReconcileDailyQuests(userID, dateKey)
	if err == nil && len(granted) > 0 {
		fmt.Println("Daily quest complete: +15 XP")
	}
	return nil
}
