package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/AshishSahani0/saarthi-portal/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Schedule"

var columns = []string{
	"Date", "Time Slot", "Student", "Psychologist", "Mode", "Status", "Derived", "Location",
}

// Schedule renders classified sessions as an xlsx workbook, one row
// per session, grouped by date in list order. Returns the file bytes
// so the HTTP layer can stream it without touching disk.
func Schedule(sessions []models.ClassifiedBooking, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	title := fmt.Sprintf("Session schedule, generated %s", generatedAt.Format("02 Jan 2006 15:04"))
	_ = f.SetCellValue(sheetName, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, name := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, name)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	ordered := append([]models.ClassifiedBooking(nil), sessions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Date.Before(ordered[j].Date)
	})

	row := 3
	for _, cb := range ordered {
		values := []interface{}{
			cb.Date.Format("02.01.2006"),
			cb.TimeSlot,
			cb.StudentName,
			cb.PsychologistName,
			cb.MeetingMode,
			cb.Status,
			cb.Session.Status,
			location(cb.Booking),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		if style, ok := statusStyle(f, cb.Session.Color); ok {
			derivedCell, _ := excelize.CoordinatesToCellName(7, row)
			_ = f.SetCellStyle(sheetName, derivedCell, derivedCell, style)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "B", 16)
	_ = f.SetColWidth(sheetName, "C", "D", 24)
	_ = f.SetColWidth(sheetName, "E", lastCol, 14)
	_ = f.DeleteSheet("Sheet1")

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func location(b models.Booking) string {
	if b.MeetingMode == models.ModeInPerson {
		return b.Location
	}
	return b.RoomID
}

var colorFills = map[string]string{
	models.ColorYellow: "#FFF2CC",
	models.ColorBlue:   "#DDEBF7",
	models.ColorGreen:  "#E2EFDA",
	models.ColorRed:    "#FCE4EC",
}

func statusStyle(f *excelize.File, color string) (int, bool) {
	fill, ok := colorFills[color]
	if !ok {
		return 0, false
	}
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
	})
	if err != nil {
		return 0, false
	}
	return style, true
}
