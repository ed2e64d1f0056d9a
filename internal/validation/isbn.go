// Package validation содержит функции валидации входных данных.
package validation

import "unicode"

// IsValidISBN проверяет формат ISBN: 13 цифр (допускается группировка
// дефисами) либо устаревшая 10-значная форма с возможной контрольной X.
func IsValidISBN(isbn string) bool {
	if isbn == "" {
		return false
	}

	digits := make([]rune, 0, len(isbn))
	for _, ch := range isbn {
		if ch == '-' {
			continue
		}
		digits = append(digits, ch)
	}

	switch len(digits) {
	case 13:
		for _, ch := range digits {
			if !unicode.IsDigit(ch) {
				return false
			}
		}
		return true
	case 10:
		for i, ch := range digits {
			// Последний символ ISBN-10 может быть контрольной X.
			if i == 9 && (ch == 'X' || ch == 'x') {
				continue
			}
			if !unicode.IsDigit(ch) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
