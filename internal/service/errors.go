package service

import (
	"errors"
	"sort"
	"strings"
)

// ErrRegistryNotConfigured возвращается, если адрес академического реестра не задан.
var ErrRegistryNotConfigured = errors.New("academic registry is not configured")

// ValidationError содержит сообщения об ошибках валидации по полям ввода.
type ValidationError struct {
	Fields map[string]string
}

// Error возвращает сообщения по полям в алфавитном порядке.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidationError возвращает *ValidationError, если err им является.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
