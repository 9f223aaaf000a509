package models

// StatusCounts — срез счетчиков броней мероприятия: статус → роль → количество.
// Снимок неизменяемый, читается заново внутри каждой заблокированной транзакции.
type StatusCounts map[BookingStatus]map[Role]int64

// Count возвращает счетчик для пары статус/роль.
func (c StatusCounts) Count(status BookingStatus, role Role) int64 {
	return c[status][role]
}

// Add увеличивает счетчик; используется хранилищами при сборке снимка.
func (c StatusCounts) Add(status BookingStatus, role Role, n int64) {
	byRole, ok := c[status]
	if !ok {
		byRole = make(map[Role]int64)
		c[status] = byRole
	}
	byRole[role] += n
}
