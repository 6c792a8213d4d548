// Package redact provides utilities for redacting sensitive information from strings
// before they are logged. Retrieval failures routinely echo certificate paths,
// portal passwords and taxpayer identifiers; none of those may reach a log file.
package redact

import (
	"regexp"
	"strings"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTaxIDPlaceholder      = "[REDACTED_TAX_ID]"
)

// Precompiled regex patterns
var (
	// Credentials and tokens, including the Portuguese "senha" used by the portals
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd|senha)(\s*[=:]\s*['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// Taxpayer identifiers: formatted CNPJ/CPF or bare 14/11 digit runs
	cnpjRegex = regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b|\b\d{14}\b`)
	cpfRegex  = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b|\b\d{11}\b`)

	// File paths (certificates, spreadsheets, download folders)
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)
	winPathRegex  = regexp.MustCompile(`[A-Za-z]:\\[^\\]+(\\[^\\]+)+`)

	// Stack trace fragments
	stackTraceRegex = regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`)

	// Email addresses
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

	// patterns are applied in order; tax IDs go before paths because a
	// formatted CNPJ contains a slash
	patterns = []struct {
		re          *regexp.Regexp
		placeholder string
	}{
		{passwordRegex, RedactedCredentialPlaceholder},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{cnpjRegex, RedactedTaxIDPlaceholder},
		{cpfRegex, RedactedTaxIDPlaceholder},
		{stackTraceRegex, "[STACK_TRACE_REDACTED]"},
		{winPathRegex, RedactedPathPlaceholder},
		{unixPathRegex, RedactedPathPlaceholder},
		{emailRegex, "[REDACTED_EMAIL]"},
	}
)

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range patterns {
		result = p.re.ReplaceAllString(result, p.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// TaxID masks all but the last four digits of a CNPJ/CPF so operators can
// still tell runs apart in the logs.
func TaxID(id string) string {
	digits := make([]rune, 0, len(id))
	for _, r := range id {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + string(digits[len(digits)-4:])
}
