package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var bookingHeaders = []interface{}{
	"Customer", "Email", "Phone", "Date", "Time", "Guests", "Table", "Occasion", "Special Requests",
}

// SheetsService mirrors the booking collection into one sheet of a
// spreadsheet. Row 1 holds the headers.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
}

// NewSheetsService authenticates with a service account credentials file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return NewSheetsServiceWithOptions(ctx, spreadsheetID, sheetName, option.WithHTTPClient(config.Client(ctx)))
}

// NewSheetsServiceWithOptions builds the service from explicit client options.
func NewSheetsServiceWithOptions(ctx context.Context, spreadsheetID, sheetName string, opts ...option.ClientOption) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// TestConnection reads the header cell to verify access.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.sheetName+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetServiceAccountEmail returns the address the spreadsheet must be shared
// with.
func GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}

	return creds.ClientEmail, nil
}

// ReplaceBookings clears the sheet and writes headers plus one row per
// booking in collection order.
func (s *SheetsService) ReplaceBookings(ctx context.Context, bookings []models.Reservation) error {
	clearRange := s.sheetName + "!A1:Z"
	if _, err := s.service.Spreadsheets.Values.Clear(s.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear bookings sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(bookings)+1)
	values = append(values, bookingHeaders)
	for _, b := range bookings {
		values = append(values, bookingRowValues(b))
	}

	valueRange := &sheets.ValueRange{Values: values}
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.sheetName+"!A1", valueRange).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to update bookings sheet: %w", err)
	}
	return nil
}

func bookingRowValues(b models.Reservation) []interface{} {
	return []interface{}{
		b.CustomerName,
		b.Email,
		b.Phone,
		b.Date,
		b.Time,
		b.Guests,
		b.Table,
		b.Occasion,
		b.SpecialRequests,
	}
}
