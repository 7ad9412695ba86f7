// Package export renders bookings as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	BookingsSheet = "Bookings"
	SummarySheet  = "Summary"
)

var headers = []string{"Date", "Time", "Customer", "Guests", "Table", "Occasion", "Email", "Phone", "Special Requests"}

// WriteBookings writes a workbook with one row per booking, ordered by date
// and time, plus a per-day summary sheet. Empty from/to are rendered as open
// bounds in the title.
func WriteBookings(w io.Writer, bookings []models.Reservation, from, to string) error {
	f, err := build(bookings, from, to)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveBookings writes the workbook into dir and returns the file path.
func SaveBookings(dir string, bookings []models.Reservation, from, to string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := build(bookings, from, to)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(from, to))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

// FileName is the download name for a range export.
func FileName(from, to string) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", bound(from, "start"), bound(to, "end"))
}

func build(bookings []models.Reservation, from, to string) (*excelize.File, error) {
	sorted := make([]models.Reservation, len(bookings))
	copy(sorted, bookings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Time < sorted[j].Time
	})

	f := excelize.NewFile()

	index, err := f.NewSheet(BookingsSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	writeBookingsSheet(f, sorted, from, to)

	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	writeSummarySheet(f, sorted)

	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func writeBookingsSheet(f *excelize.File, bookings []models.Reservation, from, to string) {
	_ = f.SetCellValue(BookingsSheet, "A1", fmt.Sprintf("Period: %s - %s", bound(from, "start"), bound(to, "end")))
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.MergeCell(BookingsSheet, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(BookingsSheet, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(BookingsSheet, cell, h)
		_ = f.SetCellStyle(BookingsSheet, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := []interface{}{b.Date, b.Time, b.CustomerName, b.Guests, b.Table, b.Occasion, b.Email, b.Phone, b.SpecialRequests}
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		_ = f.SetSheetRow(BookingsSheet, cell, &row)
	}

	_ = f.SetColWidth(BookingsSheet, "A", "B", 12)
	_ = f.SetColWidth(BookingsSheet, "C", "C", 25)
	_ = f.SetColWidth(BookingsSheet, "D", lastCol, 18)
}

func writeSummarySheet(f *excelize.File, bookings []models.Reservation) {
	_ = f.SetSheetRow(SummarySheet, "A1", &[]interface{}{"Date", "Bookings", "Guests"})

	type day struct {
		date     string
		bookings int
		guests   int
	}
	var days []day
	for _, b := range bookings {
		if len(days) == 0 || days[len(days)-1].date != b.Date {
			days = append(days, day{date: b.Date})
		}
		days[len(days)-1].bookings++
		days[len(days)-1].guests += b.Guests
	}

	total := day{date: "Total"}
	for i, d := range days {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(SummarySheet, cell, &[]interface{}{d.date, d.bookings, d.guests})
		total.bookings += d.bookings
		total.guests += d.guests
	}
	cell, _ := excelize.CoordinatesToCellName(1, len(days)+2)
	_ = f.SetSheetRow(SummarySheet, cell, &[]interface{}{total.date, total.bookings, total.guests})
}

func bound(v, open string) string {
	if v == "" {
		return open
	}
	return v
}
