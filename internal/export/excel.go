// Package export renders bookings as an Excel workbook for back-office use.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"batard/internal/models"
)

// sheetWriter is a thin cursor over one excelize workbook.
type sheetWriter struct {
	file       *excelize.File
	sheet      string
	currentRow int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

func (w *sheetWriter) addSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}
	if w.sheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else {
		if _, err := w.file.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
	}
	w.sheet = name
	w.currentRow = 1
	return nil
}

func (w *sheetWriter) writeHeader(columns []string) error {
	if err := w.writeRow(anySlice(columns)); err != nil {
		return err
	}
	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		start, _ := excelize.CoordinatesToCellName(1, w.currentRow-1)
		end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow-1)
		_ = w.file.SetCellStyle(w.sheet, start, end, style)
	}
	return nil
}

func (w *sheetWriter) writeRow(row []any) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	for i, val := range row {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.sheet, cell, val); err != nil {
			return err
		}
	}
	w.currentRow++
	return nil
}

func anySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// WriteBookings renders one workbook with a booking summary sheet and a
// per-line item sheet, newest bookings first as given.
func WriteBookings(out io.Writer, bookings []models.Booking) error {
	w := newSheetWriter()
	defer w.file.Close()

	if err := w.addSheet("Bookings"); err != nil {
		return err
	}
	if err := w.writeHeader([]string{
		"Number", "Status", "Archived", "Customer", "Phone", "Email",
		"Pickup dates", "Total", "Created",
	}); err != nil {
		return err
	}
	for _, b := range bookings {
		dates := make([]string, 0, len(b.Pickups))
		for _, p := range b.Pickups {
			dates = append(dates, p.Date+" "+p.TimeSlot)
		}
		if err := w.writeRow([]any{
			b.BookingNumber,
			string(b.Status),
			b.Archived,
			b.Customer.FirstName + " " + b.Customer.LastName,
			b.Customer.Phone,
			b.Customer.Email,
			strings.Join(dates, "; "),
			b.TotalPrice,
			b.CreatedAt.Format("2006-01-02 15:04"),
		}); err != nil {
			return err
		}
	}

	if err := w.addSheet("Items"); err != nil {
		return err
	}
	if err := w.writeHeader([]string{
		"Booking", "Product", "Quantity", "Price", "Subtotal", "Pickup date", "Pickup slot",
	}); err != nil {
		return err
	}
	for _, b := range bookings {
		for _, it := range b.Items {
			date, slot := "", ""
			if it.PickupIndex >= 0 && it.PickupIndex < len(b.Pickups) {
				date = b.Pickups[it.PickupIndex].Date
				slot = b.Pickups[it.PickupIndex].TimeSlot
			}
			if err := w.writeRow([]any{
				b.BookingNumber, it.Name, it.Quantity, it.Price, it.SubtotalPrice, date, slot,
			}); err != nil {
				return err
			}
		}
	}

	return w.file.Write(out)
}
