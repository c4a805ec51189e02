package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
)

const DefaultMaxQueryLength = 10000

var blockedQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script.*?>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)onload=`),
	regexp.MustCompile(`(?i)onerror=`),
	regexp.MustCompile(`(?i)onclick=`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)exec\(`),
}

// ValidateQueryText rejects empty, oversized or script-bearing query text.
// maxLength counts characters.
func ValidateQueryText(query string, maxLength int) error {
	if strings.TrimSpace(query) == "" {
		return apperrors.Validation("Query text is empty")
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxQueryLength
	}
	if utf8.RuneCountInString(query) > maxLength {
		return apperrors.Validation(fmt.Sprintf("Query too long. Maximum length: %d characters", maxLength))
	}
	for _, p := range blockedQueryPatterns {
		if p.MatchString(query) {
			return apperrors.Validation("Query contains potentially unsafe content")
		}
	}
	return nil
}
