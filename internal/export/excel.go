// Package export renders booking reports as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"massagebot/internal/models"
)

var reportColumns = []string{
	"ID", "Reference", "Client", "Phone", "Service",
	"Date", "Duration (min)", "Price", "Status", "Notes",
}

// BookingsReport writes an xlsx workbook with one row per booking.
func BookingsReport(w io.Writer, bookings []models.Booking) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Bookings"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		start, _ := excelize.CoordinatesToCellName(1, 1)
		end, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = f.SetCellStyle(sheet, start, end, style)
	}

	for i, b := range bookings {
		price := fmt.Sprintf("$%.2f", float64(b.PriceCents)/100)
		row := []any{
			b.ID, b.Reference, b.UserName, b.UserPhone, b.ServiceName,
			b.BookingDateTime.Format("2006-01-02 15:04"), b.DurationMinutes,
			price, b.Status, b.Notes,
		}
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}
