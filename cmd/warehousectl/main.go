package main

import (
	"context"
	"fmt"
	"os"

	"go-warehouse-fulfillment/internal/app"
	"go-warehouse-fulfillment/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "warehousectl",
	Short:         "Operations CLI for the warehouse fulfillment backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// withContainer loads config, wires the services and closes them after run.
func withContainer(run func(ctx context.Context, c *app.Container) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		c, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer c.Close(context.Background())
		return run(ctx, c)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
