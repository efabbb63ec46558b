// Package google publishes the survey export table to a Google Sheets tab.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"survey/internal/core"
	"survey/internal/export"
)

// Client overwrites one sheet tab with the full export on every publish.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// New creates a client authenticated with a service account. Extra options
// are applied after the credentials.
func New(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	var all []goption.ClientOption
	if len(credentialsJSON) > 0 {
		all = append(all,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	all = append(all, opts...)
	if len(all) == 0 {
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// Publish replaces the sheet contents with the CSV export of records.
func (c *Client) Publish(ctx context.Context, records []core.Record) error {
	return c.PublishTable(ctx, export.Table(records))
}

// PublishTable writes rows starting at A1 and then clears whatever an
// earlier, longer table left below them. A failed write leaves the previous
// table in place. Cells are written RAW so the sheet keeps the export's
// text formatting.
func (c *Client) PublishTable(ctx context.Context, rows [][]string) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	updated := int64(0)
	if len(values) > 0 {
		resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(c.sheetName, "A1"), &gsheet.ValueRange{Values: values}).
			ValueInputOption("RAW").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write sheet %s: %w", c.sheetName, err)
		}
		updated = resp.UpdatedCells
	}

	tail := a1(c.sheetName, fmt.Sprintf("A%d:Z", len(rows)+1))
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, tail, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear stale rows of sheet %s: %w", c.sheetName, err)
	}

	slog.InfoContext(ctx, "Published export to Google Sheets",
		"sheet", c.sheetName,
		"rows", len(rows),
		"updated_cells", updated)
	return nil
}

// a1 builds an A1 range, quoting the sheet name when it is not a plain word.
func a1(sheet, cells string) string {
	plain := sheet != ""
	for _, r := range sheet {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			plain = false
			break
		}
	}
	if plain {
		return sheet + "!" + cells
	}
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}
