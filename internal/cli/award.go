package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(awardCmd)
}

var awardCmd = &cobra.Command{
	Use:   "award <key> <amount>",
	Short: "Grant XP under an idempotency key",
	Long: `Grant XP to the user under the given key. A key is applied at
most once ever: re-running the same award is a no-op.`,
	Args: cobra.ExactArgs(2),
	RunE: runAward,
}

func runAward(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("amount must be a positive integer")
	}

	db, svc, err := openService()
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := svc.Ledger.AwardXPOnce(userID, args[0], amount, map[string]string{"source": "cli"})
	if err != nil {
		return err
	}

	if !result.Awarded {
		fmt.Printf("Skipped: key %q was already applied\n", args[0])
		return nil
	}
	fmt.Printf("Awarded %d XP\n", amount)
	if result.LeveledUp {
		fmt.Printf("Level up! You are now level %d\n", result.Level)
	}
	return nil
}
