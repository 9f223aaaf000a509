// Package capacity считает свободные места мероприятия по снимку счетчиков.
// Функции чистые: никакого ввода-вывода, только переданный снимок.
package capacity

import "sobytnik/internal/models"

// PlacesAvailable возвращает число свободных мест для целевой аудитории мероприятия.
//
// Для WAITING_LIST_ONLY местами считаются только подтвержденные брони; для
// остальных статусов мероприятия место занимают CONFIRMED, WAITING_LIST и
// RESERVED. Отмененные брони не учитываются никогда. Результат <= 0 означает
// "мест нет"; отрицательное значение возможно только при гонке, которую
// исключает блокировка мероприятия.
func PlacesAvailable(event *models.Event, counts models.StatusCounts) int64 {
	if event.Status == models.EventWaitingListOnly {
		return event.NumberOfPlaces - countTargeted(event, counts, models.StatusConfirmed)
	}

	taken := countTargeted(event, counts, models.StatusConfirmed) +
		countTargeted(event, counts, models.StatusWaitingList) +
		countTargeted(event, counts, models.StatusReserved)
	return event.NumberOfPlaces - taken
}

// PromotionHeadroom возвращает число мест, доступных для подтверждения брони
// из листа ожидания. Лист ожидания здесь не учитывается: продвижение забирает
// место, освобожденное среди CONFIRMED и RESERVED, иначе отмена при нескольких
// ожидающих никогда бы никого не продвинула.
func PromotionHeadroom(event *models.Event, counts models.StatusCounts) int64 {
	taken := countTargeted(event, counts, models.StatusConfirmed) +
		countTargeted(event, counts, models.StatusReserved)
	return event.NumberOfPlaces - taken
}

// countTargeted суммирует счетчики статуса по ролям из целевой аудитории.
// Брони ролей вне аудитории (например, преподаватель на студенческом
// мероприятии) не занимают места.
func countTargeted(event *models.Event, counts models.StatusCounts, status models.BookingStatus) int64 {
	var total int64
	for role, n := range counts[status] {
		if event.Targets(role) {
			total += n
		}
	}
	return total
}
