package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lakshendra02/SwipeInvoiceApp/internal/logger"
	"github.com/lakshendra02/SwipeInvoiceApp/internal/reconcile"
)

var resetCmd = &cobra.Command{
	Use:     "reset",
	Short:   "Delete every invoice, product and customer of a user",
	Example: `  swipe-invoice reset --user alice --yes`,
	Args:    cobra.NoArgs,
	RunE:    runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
}

func runReset(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("reset")

	confirmed, _ := cmd.Flags().GetBool("yes")
	user, err := requireUser(cmd)
	if err != nil {
		return err
	}
	if !confirmed {
		return fmt.Errorf("reset deletes all data of %s; pass --yes to confirm", user)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, log)
	defer cancel()

	gw, err := openGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer gw.Close()

	if err := gw.Write(ctx, user, reconcile.NewEngine().Reset()); err != nil {
		return fmt.Errorf("failed to reset dataset: %s", describeError(err))
	}

	log.Info().Str("user_id", user).Msg("Dataset reset")
	fmt.Printf("All data of %s deleted.\n", user)
	return nil
}
