package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/truemediaorg/mentionbot/config"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints mention counts by status",
	Long:  `Prints the number of stored mentions, in total and by status, as JSON`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnvfile()
		config.SetupLogging(cfg)
		ctx := context.Background()

		store, err := openStore(ctx, cfg, newSecretsManagerClient(ctx))
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
