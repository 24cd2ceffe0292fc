package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute stats, badges, and daily quests from raw activity",
	RunE:  runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	update, err := svc.ReconcileAll(userID)
	if err != nil {
		return err
	}
	if update == nil {
		fmt.Println("Reconciled (stats recompute skipped)")
		return nil
	}

	fmt.Println("Reconciled from raw activity:")
	fmt.Printf("  Moments:     %d\n", update.MomentsCount)
	fmt.Printf("  Reflections: %d\n", update.ReflectionsCount)
	fmt.Printf("  Streak:      %d days (best %d)\n", update.StreakDays, update.BestStreakDays)
	return nil
}
