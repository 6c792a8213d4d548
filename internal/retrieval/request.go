package retrieval

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the dd/mm/yyyy format used by the NFS-e portal.
const DateLayout = "02/01/2006"

// ErrInvalidRequest is matched by every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// ValidationError carries the user-facing reason a request was rejected.
type ValidationError struct {
	Message string

	// Err is the underlying cause, if any
	Err error
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInvalidRequest) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TaxIDKind tells a CPF (natural person) from a CNPJ (company).
type TaxIDKind string

// Tax ID kinds
const (
	KindCPF  TaxIDKind = "cpf"
	KindCNPJ TaxIDKind = "cnpj"
)

// NormalizeTaxID strips punctuation and reports whether the result is a CPF
// (11 digits) or a CNPJ (14 digits). Check digits are not verified.
func NormalizeTaxID(id string) (string, TaxIDKind, error) {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '/' || r == '-' || r == ' ':
		default:
			return "", "", invalid("CNPJ/CPF must contain 11 or 14 digits")
		}
	}
	digits := b.String()
	switch len(digits) {
	case 11:
		return digits, KindCPF, nil
	case 14:
		return digits, KindCNPJ, nil
	default:
		return "", "", invalid("CNPJ/CPF must contain 11 or 14 digits")
	}
}

// NFeRequest drives a certificate-based NF-e pull for the keys listed in a
// spreadsheet.
type NFeRequest struct {
	TaxID        string `json:"tax_id" label:"CNPJ/CPF" validate:"required,taxid"`
	CertPath     string `json:"cert_path" label:"Certificate" validate:"required,file"`
	CertPassword string `json:"cert_password" label:"Certificate password" validate:"required"`
	SheetPath    string `json:"sheet_path" label:"Spreadsheet" validate:"required,file"`
	OutputDir    string `json:"output_dir" label:"Output folder" validate:"required,dir"`
}

// Validate checks the request fields. It does not open the certificate;
// see CheckCertificate.
func (r NFeRequest) Validate() error {
	return validateStruct(r)
}

// NFSeRequest drives a portal login NFS-e pull for a list of tax IDs over a
// date range.
type NFSeRequest struct {
	User        string `json:"user" label:"User" validate:"required"`
	Password    string `json:"password" label:"Password" validate:"required"`
	TaxIDsFile  string `json:"tax_ids_file" label:"CNPJ list" validate:"required,file"`
	StartDate   string `json:"start_date" label:"Start date" validate:"required,brdate"`
	EndDate     string `json:"end_date" label:"End date" validate:"required,brdate"`
	DownloadDir string `json:"download_dir" label:"Download folder" validate:"required,dir"`
}

// Validate checks the request fields and that the range is not inverted.
func (r NFSeRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	start, end, err := r.Period()
	if err != nil {
		return err
	}
	if start.After(end) {
		return invalid("Start date must not be after end date")
	}
	return nil
}

// Period parses the date range.
func (r NFSeRequest) Period() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("Start date must be a date in dd/mm/yyyy format")
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, invalid("End date must be a date in dd/mm/yyyy format")
	}
	return start, end, nil
}

// ReadTaxIDs reads one tax ID per line, skipping blank lines and lines
// starting with '#'. Every entry must be a valid CPF or CNPJ.
func ReadTaxIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CNPJ list: %w", err)
	}
	defer func() { _ = f.Close() }()

	var ids []string
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, _, err := NormalizeTaxID(text)
		if err != nil {
			return nil, invalid("CNPJ list line %d: CNPJ/CPF must contain 11 or 14 digits", line)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read CNPJ list: %w", err)
	}
	if len(ids) == 0 {
		return nil, invalid("CNPJ list is empty")
	}
	return ids, nil
}

// validate is shared; validator caches struct metadata per instance.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if label := field.Tag.Get("label"); label != "" {
			return label
		}
		return field.Name
	})
	_ = v.RegisterValidation("taxid", func(fl validator.FieldLevel) bool {
		_, _, err := NormalizeTaxID(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("brdate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(DateLayout, fl.Field().String())
		return err == nil
	})
	return v
}

// validateStruct runs the validator and reports the first failure in words.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validation failed: %w", err)
	}
	return invalid("%s", describe(fieldErrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "taxid":
		return "CNPJ/CPF must contain 11 or 14 digits"
	case "brdate":
		return fe.Field() + " must be a date in dd/mm/yyyy format"
	case "file":
		return fe.Field() + " must be an existing file"
	case "dir":
		return fe.Field() + " must be an existing folder"
	default:
		return fe.Field() + " is invalid"
	}
}
