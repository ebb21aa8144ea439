// Package queue contains the commands that inspect and manage the sync queue.
package queue

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"fjacquet/receiptvault/cmd/root"
	"fjacquet/receiptvault/internal/models"
)

var (
	listStatus string
	retryAll   bool
	exportPath string

	// Cmd is the queue command
	Cmd = &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the sync queue",
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List queue items, optionally filtered by status",
		RunE:  runList,
	}

	retryCmd = &cobra.Command{
		Use:   "retry [id]",
		Short: "Re-enqueue a failed item, or all failed items with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRetry,
	}

	pruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "Delete completed queue items",
		RunE:  runPrune,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export the queue to a CSV file",
		RunE:  runExport,
	}
)

func init() {
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Filter by status: pending, in_progress, failed, completed")
	retryCmd.Flags().BoolVar(&retryAll, "all", false, "Retry every failed item")
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "queue.csv", "Output CSV file")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(retryCmd)
	Cmd.AddCommand(pruneCmd)
	Cmd.AddCommand(exportCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	items, err := collectItems(cmd, listStatus)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		fmt.Println("Queue is empty.")
		return nil
	}
	for _, item := range items {
		line := fmt.Sprintf("#%d %-12s %-11s receipt=%s retries=%d",
			item.ID, item.Action, item.Status, item.ReceiptID, item.RetryCount)
		if item.ErrorMessage != "" {
			line += " error=" + item.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}

func runRetry(cmd *cobra.Command, args []string) error {
	app, err := root.EnsureApp(cmd)
	if err != nil {
		return err
	}

	if retryAll {
		count, err := app.Store().RetryAllFailed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Re-enqueued %d failed items\n", count)
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("provide a queue item id or --all")
	}
	var id int64
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid queue item id '%s'", args[0])
	}
	if err := app.Store().RetryFailed(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Re-enqueued item #%d\n", id)
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	app, err := root.EnsureApp(cmd)
	if err != nil {
		return err
	}

	count, err := app.Store().PruneCompleted(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d completed items\n", count)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	items, err := collectItems(cmd, "")
	if err != nil {
		return err
	}

	file, err := os.Create(exportPath)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			root.Log.WithError(err).Warn("Failed to close export file")
		}
	}()

	if err := gocsv.MarshalFile(&items, file); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	fmt.Printf("Exported %d items to %s\n", len(items), exportPath)
	return nil
}

// collectItems reads the queue, filtered by status when one is given. An
// empty filter returns every item regardless of state.
func collectItems(cmd *cobra.Command, status string) ([]models.SyncQueueItem, error) {
	app, err := root.EnsureApp(cmd)
	if err != nil {
		return nil, err
	}

	statuses := []models.SyncStatus{
		models.StatusPending, models.StatusInProgress,
		models.StatusFailed, models.StatusCompleted,
	}
	if status != "" {
		statuses = []models.SyncStatus{models.SyncStatus(status)}
	}

	var items []models.SyncQueueItem
	for _, s := range statuses {
		batch, err := app.Store().ItemsByStatus(cmd.Context(), s)
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}
	return items, nil
}
