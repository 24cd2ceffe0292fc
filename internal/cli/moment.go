package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	logCmd.Flags().StringSliceVar(&momentTags, "tag", nil, "Tag the moment (repeatable)")
	logCmd.Flags().StringVar(&momentNote, "note", "", "Attach a note")
	rootCmd.AddCommand(logCmd)
}

var (
	momentTags []string
	momentNote string
)

var logCmd = &cobra.Command{
	Use:   "log <emotion>",
	Short: "Log a moment",
	Long:  `Log a moment with an emotion, e.g. "lumen log joy --tag walk".`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := svc.Recorder.LogMoment(userID, args[0], momentTags, momentNote)
	if err != nil {
		return err
	}
	fmt.Printf("Logged %s moment for %s\n", m.Emotion, m.DateKey)

	// Settle today's quests right away so the grant is visible.
	granted, err := svc.Quests.ReconcileDailyQuests(userID, m.DateKey)
	if err == nil && len(granted) > 0 {
		fmt.Println("Daily quest complete: +10 XP")
	}
	return nil
}
