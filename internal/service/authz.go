package service

import (
	"context"

	"sobytnik/internal/models"
)

// IsUserAbleToManageEvent решает, вправе ли пользователь управлять
// мероприятием: смотреть детальные брони, отмечать посещение, выгружать
// списки. Админ и менеджер мероприятий могут всегда; руководитель группы —
// только для мероприятий своей группы.
func (s *BookingService) IsUserAbleToManageEvent(ctx context.Context, user *models.User, event *models.Event) (bool, error) {
	switch user.Role {
	case models.RoleAdmin, models.RoleEventManager:
		return true, nil
	case models.RoleEventLeader:
		if event.GroupToken == "" || s.groups == nil {
			return false, nil
		}
		return s.groups.IsGroupManager(ctx, event.GroupToken, user.ID)
	default:
		return false, nil
	}
}
