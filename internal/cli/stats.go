package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show your progression stats",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := svc.Ledger.Stats(userID)
	if err != nil {
		return err
	}

	fmt.Printf("Level %d — %s\n", stats.Level, stats.LevelName)
	fmt.Printf("  XP:          %d all-time, %d this week (%s)\n",
		stats.AllTimeXP, stats.WeeklyXP, stats.WeeklyKey)
	fmt.Printf("  Streak:      %d days (best %d)\n", stats.StreakDays, stats.BestStreakDays)
	fmt.Printf("  Moments:     %d (%d with depth)\n", stats.MomentsCount, stats.DepthMoments)
	fmt.Printf("  Reflections: %d\n", stats.ReflectionsCount)
	if stats.JourneyDay > 0 {
		fmt.Printf("  Journey day: %d of 7\n", stats.JourneyDay)
	}
	if len(stats.EmotionCounts) > 0 {
		fmt.Println("  Emotions:")
		for emotion, count := range stats.EmotionCounts {
			fmt.Printf("    %-10s %d\n", emotion, count)
		}
	}
	return nil
}
