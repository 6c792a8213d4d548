package redact_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/autonfe/desk/internal/redact"
	"github.com/stretchr/testify/assert"
)

func TestRedactString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "no sensitive data",
			input:    "portal returned 3 documents",
			expected: "portal returned 3 documents",
		},
		{
			name:     "password parameter",
			input:    "login failed with password=secret123 in form",
			expected: "login failed with [REDACTED_CREDENTIAL] in form",
		},
		{
			name:     "portuguese password label",
			input:    "senha: hunter22 rejeitada",
			expected: "[REDACTED_CREDENTIAL] rejeitada",
		},
		{
			name:     "token",
			input:    "session token=abcdef1234567890ghij expired",
			expected: "session [REDACTED_KEY] expired",
		},
		{
			name:     "formatted CNPJ",
			input:    "no documents for 12.345.678/0001-95",
			expected: "no documents for [REDACTED_TAX_ID]",
		},
		{
			name:     "bare CNPJ",
			input:    "no documents for 12345678000195",
			expected: "no documents for [REDACTED_TAX_ID]",
		},
		{
			name:     "formatted CPF",
			input:    "taxpayer 123.456.789-09 blocked",
			expected: "taxpayer [REDACTED_TAX_ID] blocked",
		},
		{
			name:     "certificate path",
			input:    "open /home/ana/certs/a1.pfx: permission denied",
			expected: "open [REDACTED_PATH]: permission denied",
		},
		{
			name:     "Windows path",
			input:    "cannot read C:\\Users\\ana\\Desktop\\notas.xlsx",
			expected: "cannot read [REDACTED_PATH]",
		},
		{
			name:     "email",
			input:    "portal account ana@example.com locked",
			expected: "portal account [REDACTED_EMAIL] locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, redact.String(tt.input))
		})
	}
}

func TestRedactError(t *testing.T) {
	assert.Equal(t, "", redact.Error(nil))

	err := fmt.Errorf("load certificate: %w", errors.New("open /tmp/certs/a1.pfx: no such file"))
	assert.Equal(t, "load certificate: open [REDACTED_PATH]: no such file", redact.Error(err))
}

func TestTaxID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "12.345.678/0001-95", expected: "**********0195"},
		{input: "12345678909", expected: "*******8909"},
		{input: "123", expected: "***"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, redact.TaxID(tt.input))
		})
	}
}
