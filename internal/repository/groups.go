package repository

import "context"

// StaticGroups — справочник руководителей групп, загруженный из конфигурации.
// Реализует domain.GroupDirectory.
type StaticGroups struct {
	managers map[string][]int64
}

func NewStaticGroups(managers map[string][]int64) *StaticGroups {
	if managers == nil {
		managers = map[string][]int64{}
	}
	return &StaticGroups{managers: managers}
}

func (g *StaticGroups) IsGroupManager(ctx context.Context, groupToken string, userID int64) (bool, error) {
	for _, id := range g.managers[groupToken] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}
