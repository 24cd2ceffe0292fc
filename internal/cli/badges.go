package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumen-app/lumen/internal/domain"
)

func init() {
	badgesCmd.AddCommand(badgesActiveCmd)
	rootCmd.AddCommand(badgesCmd)
}

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Show badge progress",
	RunE:  runBadges,
}

var badgesActiveCmd = &cobra.Command{
	Use:   "active <badge-id>",
	Short: "Choose the badge shown on your profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runBadgesActive,
}

func runBadges(cmd *cobra.Command, args []string) error {
	db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	states, err := svc.Badges.States(userID)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.BadgeState, len(states))
	for _, st := range states {
		byID[st.BadgeID] = st
	}

	var category domain.BadgeCategory
	for _, def := range svc.Badges.Definitions() {
		if def.Category != category {
			category = def.Category
			fmt.Printf("\n%s\n", category)
		}

		st := byID[def.ID]
		mark := " "
		if st.Earned {
			mark = "✓"
		}
		fmt.Printf("  %s %s %-18s %s %d/%d\n",
			mark, def.Icon, def.Name, bar(st.ProgressCurrent, def.Threshold, 10),
			st.ProgressCurrent, def.Threshold)
	}
	return nil
}

func runBadgesActive(cmd *cobra.Command, args []string) error {
	db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := svc.Badges.SetActive(userID, args[0]); err != nil {
		return err
	}
	fmt.Printf("Active badge set to %s\n", args[0])
	return nil
}
