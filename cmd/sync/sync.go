// Package sync contains the command that drains the sync queue.
package sync

import (
	"fmt"

	"github.com/spf13/cobra"

	"fjacquet/receiptvault/cmd/root"
)

// Cmd is the sync command
var Cmd = &cobra.Command{
	Use:   "sync",
	Short: "Process the pending sync queue against the configured backend",
	Long: `Sync authenticates against the configured storage backend and works
through the queue: uploading images, merging and publishing day
manifests, and downloading receipts adopted from other devices.`,
	RunE: runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	app, err := root.EnsureApp(cmd)
	if err != nil {
		return err
	}
	if app.Engine() == nil {
		return fmt.Errorf("sync requires a backend; remove --offline or configure storage.mode")
	}

	ctx := cmd.Context()
	if err := app.Backend().Authenticate(ctx); err != nil {
		return fmt.Errorf("backend authentication failed: %w", err)
	}

	summary, err := app.Engine().ProcessQueue(ctx)
	if err != nil {
		return fmt.Errorf("sync aborted: %w", err)
	}

	fmt.Printf("Processed %d items: %d completed, %d failed\n",
		summary.Processed, summary.Completed, summary.Failed)
	if summary.Failed > 0 {
		fmt.Println("Run 'receiptvault queue list --status failed' to inspect failures.")
	}
	return nil
}
