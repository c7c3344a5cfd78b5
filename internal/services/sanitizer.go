package services

// Sanitizer очищает пользовательский HTML перед сохранением
type Sanitizer interface {
	Sanitize(raw string) string
}
