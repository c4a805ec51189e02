// Package validator checks uploaded files before they are parsed into
// datasets.
package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/tabular"
)

// AllowedExtensions is the upload allow-list.
var AllowedExtensions = []string{"csv", "xlsx", "xls"}

const prefixRows = 5

type Limits struct {
	MaxBytes   int64
	MaxRows    int
	MaxColumns int
}

func DefaultLimits() Limits {
	return Limits{
		MaxBytes:   100 * 1024 * 1024,
		MaxRows:    1_000_000,
		MaxColumns: 1000,
	}
}

// Result reports the first failing check, or the counts of a valid file.
// Frame holds the fully parsed table when Valid is true.
type Result struct {
	Valid    bool
	Error    string
	Kind     apperrors.Kind
	Rows     int
	Columns  int
	Encoding string
	Frame    *tabular.Frame
}

// Err converts an invalid result into a classified error.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return apperrors.New(r.Kind, r.Error)
}

type Validator struct {
	Limits Limits
	Logger *zap.Logger
}

func New(limits Limits, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{Limits: limits, Logger: logger}
}

func fail(kind apperrors.Kind, format string, args ...any) Result {
	return Result{Kind: kind, Error: fmt.Sprintf(format, args...)}
}

// Validate runs the checks in order: name, extension, size, emptiness, a
// prefix parse for structure, then a full parse for the row ceiling.
func (v *Validator) Validate(filename string, size int64, data []byte) Result {
	if strings.TrimSpace(filename) == "" {
		return fail(apperrors.KindValidation, "No file provided")
	}
	if !IsAllowed(filename) {
		return fail(apperrors.KindValidation, "File type not supported. Allowed types: %s", strings.Join(AllowedExtensions, ", "))
	}
	if size > v.Limits.MaxBytes {
		return fail(apperrors.KindTooLarge, "File too large. Maximum size: %.0fMB", float64(v.Limits.MaxBytes)/(1024*1024))
	}
	if size == 0 || len(data) == 0 {
		return fail(apperrors.KindValidation, "File is empty")
	}

	head, _, err := tabular.Parse(filename, data, tabular.ParseOptions{MaxRows: prefixRows})
	if err != nil {
		return v.parseFailure(filename, err)
	}
	if head.Len() == 0 {
		return fail(apperrors.KindUnprocessable, "File contains no data")
	}
	if head.Width() > v.Limits.MaxColumns {
		return fail(apperrors.KindUnprocessable, "Too many columns. Maximum allowed: %d", v.Limits.MaxColumns)
	}
	if hasDuplicates(head.Columns) {
		return fail(apperrors.KindUnprocessable, "Duplicate column names found")
	}
	for _, c := range head.Columns {
		if strings.TrimSpace(c) == "" {
			return fail(apperrors.KindUnprocessable, "Found columns with empty names")
		}
	}

	// One row past the ceiling is enough to reject.
	full, enc, err := tabular.Parse(filename, data, tabular.ParseOptions{MaxRows: v.Limits.MaxRows + 1})
	if err != nil {
		return fail(apperrors.KindUnprocessable, "Error reading file: %v", err)
	}
	if full.Len() > v.Limits.MaxRows {
		return fail(apperrors.KindUnprocessable, "Too many rows. Maximum allowed: %s", groupThousands(v.Limits.MaxRows))
	}

	v.notePharmaceutical(full.Columns)

	return Result{
		Valid:    true,
		Rows:     full.Len(),
		Columns:  full.Width(),
		Encoding: enc,
		Frame:    full,
	}
}

func (v *Validator) parseFailure(filename string, err error) Result {
	switch {
	case errors.Is(err, tabular.ErrNoColumns):
		return fail(apperrors.KindUnprocessable, "File contains no data")
	case tabular.Extension(filename) == "csv":
		v.Logger.Warn("CSV could not be parsed", zap.Error(err))
		return fail(apperrors.KindUnprocessable, "Unable to read CSV file. Please ensure it uses standard encoding (UTF-8, Latin-1, etc.)")
	default:
		return fail(apperrors.KindUnprocessable, "Unable to read Excel file: %v", err)
	}
}

func IsAllowed(filename string) bool {
	ext := tabular.Extension(filename)
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

func hasDuplicates(columns []string) bool {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			return true
		}
		seen[c] = struct{}{}
	}
	return false
}

var pharmaIndicators = []string{
	"drug", "compound", "molecule", "patient", "trial", "dose",
	"efficacy", "safety", "adverse", "clinical", "therapeutic",
	"indication", "treatment", "study", "protocol", "endpoint",
}

// PharmaScore counts indicator keywords appearing in any column name.
func PharmaScore(columns []string) int {
	score := 0
	for _, ind := range pharmaIndicators {
		for _, c := range columns {
			if strings.Contains(strings.ToLower(c), ind) {
				score++
				break
			}
		}
	}
	return score
}

func (v *Validator) notePharmaceutical(columns []string) {
	if score := PharmaScore(columns); score > 0 {
		v.Logger.Info("Detected potential pharmaceutical data", zap.Int("score", score))
	}
}

func groupThousands(n int) string {
	s := fmt.Sprint(n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client-supplied name to a safe ASCII basename.
func SanitizeFilename(name string) string {
	decomposed := norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range decomposed {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(b.String())
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}
