package capacity

import (
	"testing"

	"sobytnik/internal/models"

	"github.com/stretchr/testify/assert"
)

func studentEvent(places int64, status models.EventStatus) *models.Event {
	return &models.Event{
		ID:             1,
		NumberOfPlaces: places,
		AudienceTags:   []string{models.TagStudent},
		Status:         status,
	}
}

func TestPlacesAvailable_OpenEvent(t *testing.T) {
	event := studentEvent(1000, models.EventOpen)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 1)
	counts.Add(models.StatusWaitingList, models.RoleStudent, 10)

	assert.Equal(t, int64(989), PlacesAvailable(event, counts))
}

func TestPlacesAvailable_WaitingListOnlyIgnoresWaiting(t *testing.T) {
	event := studentEvent(2, models.EventWaitingListOnly)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 1)
	counts.Add(models.StatusWaitingList, models.RoleStudent, 1)

	assert.Equal(t, int64(1), PlacesAvailable(event, counts))
}

func TestPlacesAvailable_ReservedCountsLikeConfirmed(t *testing.T) {
	event := studentEvent(10, models.EventOpen)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 4)
	counts.Add(models.StatusReserved, models.RoleStudent, 3)

	assert.Equal(t, int64(3), PlacesAvailable(event, counts))
}

func TestPlacesAvailable_NonTargetedRoleExempt(t *testing.T) {
	event := studentEvent(5, models.EventOpen)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 5)
	// Преподавательские брони не занимают студенческие места.
	counts.Add(models.StatusConfirmed, models.RoleTeacher, 7)

	assert.Equal(t, int64(0), PlacesAvailable(event, counts))
}

func TestPlacesAvailable_CancelledNeverCounts(t *testing.T) {
	event := studentEvent(3, models.EventOpen)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 1)
	counts.Add(models.StatusCancelled, models.RoleStudent, 50)

	assert.Equal(t, int64(2), PlacesAvailable(event, counts))
}

func TestPlacesAvailable_MixedAudience(t *testing.T) {
	event := &models.Event{
		ID:             2,
		NumberOfPlaces: 10,
		AudienceTags:   []string{models.TagStudent, models.TagTeacher},
		Status:         models.EventOpen,
	}

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 4)
	counts.Add(models.StatusConfirmed, models.RoleTeacher, 4)

	assert.Equal(t, int64(2), PlacesAvailable(event, counts))
}

func TestPlacesAvailable_NegativeOnTransientOversell(t *testing.T) {
	event := studentEvent(2, models.EventOpen)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 3)

	assert.Equal(t, int64(-1), PlacesAvailable(event, counts))
}

func TestPromotionHeadroom_IgnoresWaitingList(t *testing.T) {
	event := studentEvent(2, models.EventOpen)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 1)
	counts.Add(models.StatusWaitingList, models.RoleStudent, 2)

	// Лист ожидания не мешает продвижению: свободно одно подтверждаемое место.
	assert.Equal(t, int64(1), PromotionHeadroom(event, counts))
}

func TestPromotionHeadroom_ReservedHoldsPlace(t *testing.T) {
	event := studentEvent(2, models.EventOpen)

	counts := models.StatusCounts{}
	counts.Add(models.StatusConfirmed, models.RoleStudent, 1)
	counts.Add(models.StatusReserved, models.RoleStudent, 1)

	assert.Equal(t, int64(0), PromotionHeadroom(event, counts))
}
