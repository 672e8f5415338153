// Package google talks to the real Google Sheets API on behalf of the
// spreadsheet bill backend.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"billtrack/internal/log"
	"billtrack/internal/sheets"
)

// Credentials locate a service account key (JSON wins over File), or an
// OAuth client plus a token saved by Authorize when TokenFile is set.
type Credentials struct {
	JSON string
	File string

	OAuth     OAuthClient
	TokenFile string
}

// UsesOAuth reports whether the OAuth client and token take precedence.
func (c Credentials) UsesOAuth() bool {
	return strings.TrimSpace(c.TokenFile) != "" && c.OAuth.configured()
}

// Ensure interface conformance
var _ sheets.Values = (*values)(nil)

// Bytes returns the raw key.
func (c Credentials) Bytes() ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(c.JSON)
	serviceAccountFile := strings.TrimSpace(c.File)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// NewService initializes a Sheets service. Extra options are appended after
// the credential options, which lets tests point the client at a fake server.
func NewService(ctx context.Context, creds Credentials, opts ...goption.ClientOption) (*gsheet.Service, error) {
	var base []goption.ClientOption
	switch {
	case len(opts) > 0:
	case creds.UsesOAuth():
		client, err := oauthHTTPClient(ctx, creds.OAuth, creds.TokenFile)
		if err != nil {
			return nil, err
		}
		base = append(base, goption.WithHTTPClient(client))
	default:
		key, err := creds.Bytes()
		if err != nil {
			return nil, err
		}
		base = append(base,
			goption.WithCredentialsJSON(key),
			goption.WithScopes(gsheet.SpreadsheetsScope))
	}
	svc, err := gsheet.NewService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Dialer opens spreadsheets through one shared service.
type Dialer struct {
	svc       *gsheet.Service
	sheetName string
	logger    *log.Logger
}

func NewDialer(svc *gsheet.Service, sheetName string, logger *log.Logger) *Dialer {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = sheets.DefaultSheetName
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Dialer{svc: svc, sheetName: sheetName, logger: logger.WithComponent(log.ComponentSheets)}
}

// Dial checks that the spreadsheet is reachable and carries the bill sheet,
// adding the sheet when it is missing.
func (d *Dialer) Dial(ctx context.Context, spreadsheetID string) (sheets.Values, error) {
	if d.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	ss, err := d.svc.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId", "sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", spreadsheetID, err)
	}

	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == d.sheetName {
			return &values{svc: d.svc, id: spreadsheetID}, nil
		}
	}

	d.logger.InfoContext(ctx, "Adding missing sheet", "sheet", d.sheetName, "spreadsheet_id", spreadsheetID)
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: d.sheetName},
			},
		}},
	}
	if _, err := d.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("add sheet %s: %w", d.sheetName, err)
	}
	return &values{svc: d.svc, id: spreadsheetID}, nil
}

type values struct {
	svc *gsheet.Service
	id  string
}

func (v *values) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(v.id, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// Update writes RAW so the sheet keeps amounts and dates as typed.
func (v *values) Update(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := v.svc.Spreadsheets.Values.Update(v.id, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

func (v *values) Append(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := v.svc.Spreadsheets.Values.Append(v.id, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

func (v *values) Clear(ctx context.Context, rng string) error {
	_, err := v.svc.Spreadsheets.Values.Clear(v.id, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	return nil
}
