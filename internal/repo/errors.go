package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidTransition — переход статуса невозможен из текущего состояния.
	// Возвращается guarded-обновлениями, когда WHERE по статусу не совпал.
	ErrInvalidTransition = errors.New("invalid status transition")
)
