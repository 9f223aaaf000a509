package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sobytnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter выгружает списки участников мероприятий в Excel.
type Exporter struct {
	path   string
	logger *zerolog.Logger
}

func NewExporter(path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{path: path, logger: logger}
}

// EventRoster создает Excel файл со списком броней мероприятия и возвращает
// путь к файлу. Вызывается только для пользователей с правом управления
// мероприятием: проекции содержат персональные данные.
func (e *Exporter) EventRoster(event *models.Event, views []models.DetailedBookingView) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Участники"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s — %s", event.Title, event.Date.Format("02.01.2006 15:04")))
	_ = f.MergeCell(sheetName, "A1", "G1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{"ID брони", "Участник", "Email", "Роль", "Статус", "Дата записи", "Резерв"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, view := range views {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), view.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), view.UserName)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), view.UserEmail)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), string(view.UserRole))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), statusLabel(view.Status))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), view.BookingDate.Format("02.01.2006 15:04"))
		if view.ReservedBy != nil {
			_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), fmt.Sprintf("от #%d", *view.ReservedBy))
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 10)
	_ = f.SetColWidth(sheetName, "B", "C", 25)
	_ = f.SetColWidth(sheetName, "D", "E", 18)
	_ = f.SetColWidth(sheetName, "F", "G", 18)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("event_%d_roster_%s.xlsx", event.ID, time.Now().Format("2006-01-02_15-04-05"))
	filePath := filepath.Join(e.path, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int64("event_id", event.ID).Msg("roster exported")
	return filePath, nil
}

func statusLabel(status models.BookingStatus) string {
	switch status {
	case models.StatusConfirmed:
		return "Подтверждена"
	case models.StatusWaitingList:
		return "Лист ожидания"
	case models.StatusReserved:
		return "Резерв"
	case models.StatusCancelled:
		return "Отменена"
	case models.StatusAttended:
		return "Посетил"
	case models.StatusAbsent:
		return "Не пришел"
	default:
		return string(status)
	}
}
