package services

import "errors"

var (
	// ErrNotFound запись не найдена (или не принадлежит пользователю)
	ErrNotFound = errors.New("record not found")
	// ErrConflict конкурентная запись нарушила уникальность; операцию можно повторить
	ErrConflict = errors.New("write conflict")
	// ErrForbidden действие не разрешено пользователю
	ErrForbidden = errors.New("forbidden")
)
