package export

import (
	"testing"
	"time"

	"sobytnik/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestEventRoster(t *testing.T) {
	logger := zerolog.Nop()
	exporter := NewExporter(t.TempDir(), &logger)

	event := &models.Event{
		ID:    7,
		Title: "Открытая тренировка",
		Date:  time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC),
	}
	reserver := int64(200)
	views := []models.DetailedBookingView{
		{
			BookingView: models.BookingView{ID: 1, EventID: 7, Status: models.StatusConfirmed, BookingDate: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)},
			UserID:      100,
			UserName:    "Аня Иванова",
			UserEmail:   "anya@example.com",
			UserRole:    models.RoleStudent,
		},
		{
			BookingView: models.BookingView{ID: 2, EventID: 7, Status: models.StatusReserved, BookingDate: time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC), Reserved: true},
			UserID:      101,
			ReservedBy:  &reserver,
			UserName:    "Петя Сидоров",
			UserEmail:   "petya@example.com",
			UserRole:    models.RoleStudent,
		},
	}

	path, err := exporter.EventRoster(event, views)
	require.NoError(t, err)
	require.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Участники", "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "Открытая тренировка")

	name, err := f.GetCellValue("Участники", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Аня Иванова", name)

	status, err := f.GetCellValue("Участники", "E4")
	require.NoError(t, err)
	assert.Equal(t, "Резерв", status)

	reservedBy, err := f.GetCellValue("Участники", "G4")
	require.NoError(t, err)
	assert.Equal(t, "от #200", reservedBy)
}

func TestEventRoster_EmptyList(t *testing.T) {
	logger := zerolog.Nop()
	exporter := NewExporter(t.TempDir(), &logger)
	event := &models.Event{ID: 1, Title: "Семинар", Date: time.Now()}

	path, err := exporter.EventRoster(event, nil)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
