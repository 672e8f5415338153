package sheets

import "context"

// Ports for the spreadsheet collaborators. Ranges use A1 notation with the
// sheet name, e.g. "Bills!A2:I".
type (
	// Values reads and writes cell values of one spreadsheet.
	Values interface {
		Get(ctx context.Context, rng string) ([][]any, error)
		Update(ctx context.Context, rng string, rows [][]any) error
		Append(ctx context.Context, rng string, rows [][]any) error
		Clear(ctx context.Context, rng string) error
	}

	// Dialer opens the spreadsheet identified by spreadsheetID.
	Dialer func(ctx context.Context, spreadsheetID string) (Values, error)
)
