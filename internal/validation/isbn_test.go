package validation

import "testing"

func TestIsValidISBN(t *testing.T) {
	tests := []struct {
		name  string
		isbn  string
		valid bool
	}{
		{
			name:  "isbn-13 with hyphens",
			isbn:  "978-0743273565",
			valid: true,
		},
		{
			name:  "isbn-13 without hyphens",
			isbn:  "9780132350884",
			valid: true,
		},
		{
			name:  "legacy isbn-10",
			isbn:  "0132350882",
			valid: true,
		},
		{
			name:  "isbn-10 with check digit X",
			isbn:  "080442957X",
			valid: true,
		},
		{
			name:  "too short",
			isbn:  "12345",
			valid: false,
		},
		{
			name:  "contains letters",
			isbn:  "978-074327356a",
			valid: false,
		},
		{
			name:  "X in the middle",
			isbn:  "01323X0882",
			valid: false,
		},
		{
			name:  "empty string",
			isbn:  "",
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidISBN(tt.isbn)
			if got != tt.valid {
				t.Fatalf("IsValidISBN(%q) = %v, want %v", tt.isbn, got, tt.valid)
			}
		})
	}
}
