// Package google mirrors records into a Google spreadsheet, one sheet
// per collection, authenticated with a service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"financas/internal/backup"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

// Ensure interface conformance
var (
	_ backup.RecordWriter  = (*Client)(nil)
	_ backup.RecordDeleter = (*Client)(nil)
)

// Config holds what the client needs to reach the spreadsheet.
type Config struct {
	SpreadsheetID   string
	CredentialsFile string
	CredentialsJSON string
}

// NewClient creates a Sheets-backed mirror client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}

	credentialsJSON, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets mirror client created",
		"spreadsheet_id", cfg.SpreadsheetID)

	return &Client{svc: svc, spreadsheetID: cfg.SpreadsheetID}, nil
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// AppendRecord writes the record to the sheet named after its collection.
// The row starts with the record id so DeleteRecord can find it later.
func (c *Client) AppendRecord(ctx context.Context, rec backup.Record) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := rec.Collection

	// Find the next empty row from the id column
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", sheet, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d", sheet, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{rec.Values}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write row to sheet %s: %w", sheet, err)
	}

	rowRef := fmt.Sprintf("%s!A%d", sheet, nextRow)
	slog.InfoContext(ctx, "Record mirrored to sheet",
		"collection", rec.Collection,
		"record_id", rec.ID,
		"sheets_ref", rowRef)

	return rowRef, nil
}

// DeleteRecord clears every row whose first cell matches the record id.
func (c *Client) DeleteRecord(ctx context.Context, collection, id string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", collection)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("scan id column of %s: %w", collection, err)
	}

	cleared := 0
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		cell, ok := row[0].(string)
		if !ok || cell != id {
			continue
		}

		clearRange := fmt.Sprintf("%s!A%d:Z%d", collection, i+1, i+1)
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("clear row %d of %s: %w", i+1, collection, err)
		}
		cleared++
	}

	slog.InfoContext(ctx, "Record removed from sheet",
		"collection", collection,
		"record_id", id,
		"rows_cleared", cleared)

	return nil
}
