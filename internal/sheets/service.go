package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"idscan/internal/logger"
	"idscan/pkg/models"
)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// Headers is the header row written to a new worksheet, one column per
// Row field.
var Headers = []interface{}{
	"Fișier", "Țara", "Seria", "Număr", "Nume", "Prenume", "Sex", "Cetățenie",
	"CNP", "Loc naștere", "Domiciliu", "Emisă de", "Valabilitate",
	"Valabil de la", "Valabil până la", "Rotație", "Status", "Procesat",
}

// Row is one scanned document as written to the sheet
type Row struct {
	Filename      string
	Country       string
	Serie         string
	Number        string
	LastName      string
	FirstName     string
	Sex           string
	Nationality   string
	CNP           string
	BirthPlace    string
	Address       string
	IssuedBy      string
	Validity      string
	ValidityStart string
	ValidityEnd   string
	Rotation      int
	Status        string
	ProcessedAt   string
}

// Result is the outcome of scanning one file in a batch
type Result struct {
	Filename string
	Record   *models.IdentityRecord
	Rotation int
	Status   string
	Error    error
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	var creds []byte
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

var spreadsheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetURL.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// WriteResults appends one row per result to the named worksheet, creating
// it with a header row if needed.
func (s *Service) WriteResults(ctx context.Context, results []Result, sheetName string) error {
	const op = "WriteResults"

	s.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(results)).
		Msg("Writing scan results to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, sheetName); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	var values [][]interface{}
	for _, row := range toRows(results, time.Now()) {
		values = append(values, rowToValues(row))
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		fmt.Sprintf("%s!A:%s", sheetName, lastColumn()),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote scan results to Google Sheet")

	return nil
}

func toRows(results []Result, now time.Time) []Row {
	processedAt := now.Format("02.01.2006 15:04:05")
	rows := make([]Row, 0, len(results))
	for _, result := range results {
		row := Row{
			Filename:    result.Filename,
			Rotation:    result.Rotation,
			Status:      result.Status,
			ProcessedAt: processedAt,
		}
		if result.Error != nil {
			row.Status = fmt.Sprintf("%s: %s", result.Status, result.Error)
		}
		if r := result.Record; r != nil {
			row.Country = r.Country
			row.Serie = r.Serie
			row.Number = r.Number
			row.LastName = r.LastName
			row.FirstName = r.FirstName
			row.Sex = r.Sex
			row.Nationality = r.Nationality
			row.CNP = r.CNP
			row.BirthPlace = r.BirthPlace
			row.Address = r.Address
			row.IssuedBy = r.IssuedBy
			row.Validity = r.Validity
			row.ValidityStart = r.ValidityStart
			row.ValidityEnd = r.ValidityEnd
		}
		rows = append(rows, row)
	}
	return rows
}

func rowToValues(row Row) []interface{} {
	return []interface{}{
		row.Filename,
		row.Country,
		row.Serie,
		row.Number,
		row.LastName,
		row.FirstName,
		row.Sex,
		row.Nationality,
		row.CNP,
		row.BirthPlace,
		row.Address,
		row.IssuedBy,
		row.Validity,
		row.ValidityStart,
		row.ValidityEnd,
		row.Rotation,
		row.Status,
		row.ProcessedAt,
	}
}

// lastColumn is the A1 letter of the last header column.
func lastColumn() string {
	return string(rune('A' + len(Headers) - 1))
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
			},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", sheetName, lastColumn())
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

		_, err = s.sheetsService.Spreadsheets.Values.Update(
			s.spreadsheetID,
			headerRange,
			&sheets.ValueRange{Values: [][]interface{}{Headers}},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to add headers: %w", op, err)
		}

		if err := s.formatHeaders(ctx, sheetID); err != nil {
			s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
		}
	}

	return nil
}

// formatHeaders makes the header row bold, freezes it and resizes columns
func (s *Service) formatHeaders(ctx context.Context, sheetID int64) error {
	const op = "formatHeaders"

	columns := int64(len(Headers))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	_, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}
	return nil
}
