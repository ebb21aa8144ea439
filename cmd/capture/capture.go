// Package capture contains the command that records a new receipt.
package capture

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fjacquet/receiptvault/cmd/root"
	"fjacquet/receiptvault/internal/capture"
	"fjacquet/receiptvault/internal/models"
)

var (
	imagePath  string
	capturedAt string
	timezone   string
	amount     string
	currency   string
	country    string
	region     string
	category   string
	notes      string
	taxFlag    string
	source     string
	sessionID  string

	// Cmd is the capture command
	Cmd = &cobra.Command{
		Use:   "capture",
		Short: "Record a receipt image with its metadata",
		Long: `Capture reads a receipt photo, stores it under a collision-free
date-based filename, updates the day's manifest, and enqueues the
upload work for the sync engine.`,
		RunE: runCapture,
	}
)

func init() {
	Cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Path to the receipt photo (required)")
	Cmd.Flags().StringVar(&capturedAt, "captured-at", "", "Wall-clock capture time, e.g. 2025-06-14T12:30:00 (default now)")
	Cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone the receipt was captured in")
	Cmd.Flags().StringVarP(&amount, "amount", "a", "", "Receipt amount, e.g. 42.50 (required)")
	Cmd.Flags().StringVar(&currency, "currency", "CHF", "ISO 4217 currency code")
	Cmd.Flags().StringVar(&country, "country", "", "ISO country code, e.g. CH (required)")
	Cmd.Flags().StringVar(&region, "region", "", "Region or canton within the country")
	Cmd.Flags().StringVarP(&category, "category", "c", "", "Expense category; left empty it is inferred from the notes")
	Cmd.Flags().StringVarP(&notes, "notes", "n", "", "Free-form notes, typically the merchant name")
	Cmd.Flags().StringVar(&taxFlag, "tax", "", "Whether the expense is tax relevant: true or false")
	Cmd.Flags().StringVar(&source, "source", "cli", "Capture source identifier")
	Cmd.Flags().StringVar(&sessionID, "session", "", "Capture session identifier for grouping related receipts")

	_ = Cmd.MarkFlagRequired("image")
	_ = Cmd.MarkFlagRequired("amount")
	_ = Cmd.MarkFlagRequired("country")
}

func runCapture(cmd *cobra.Command, args []string) error {
	app, err := root.EnsureApp(cmd)
	if err != nil {
		return err
	}

	req, err := buildRequest()
	if err != nil {
		return err
	}

	receipt, err := app.Capture().Capture(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	fmt.Printf("Captured %s as %s (category: %s)\n", receipt.ID, receipt.Filename, orDash(receipt.Category))
	return nil
}

func buildRequest() (capture.Request, error) {
	when := models.NewLocalTime(time.Now())
	if capturedAt != "" {
		parsed, err := models.ParseLocalTime(capturedAt)
		if err != nil {
			return capture.Request{}, err
		}
		when = parsed
	}

	money, err := models.NewMoneyFromString(amount, currency)
	if err != nil {
		return capture.Request{}, err
	}

	var taxApplicable *bool
	if taxFlag != "" {
		switch taxFlag {
		case "true":
			v := true
			taxApplicable = &v
		case "false":
			v := false
			taxApplicable = &v
		default:
			return capture.Request{}, fmt.Errorf("invalid --tax value '%s' (must be true or false)", taxFlag)
		}
	}

	return capture.Request{
		ImagePath:     imagePath,
		CapturedAt:    when,
		Timezone:      timezone,
		Amount:        money,
		Country:       country,
		Region:        region,
		Category:      category,
		Notes:         notes,
		TaxApplicable: taxApplicable,
		Source:        source,
		SessionID:     sessionID,
	}, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
