package transport

import (
	"strings"
	"time"
	"unicode"
)

// FilenamePrefix starts every uploaded batch filename.
const FilenamePrefix = "RRETR"

// BuildFilename generates the upload filename:
//
//	{prefix}.{YYYYMMDDhhmmss}.{orgName}.{submissionSuffix}.xml
//
// The submission suffix is derived from the submission identity, so retries
// within the same second still produce unique names.
func BuildFilename(now time.Time, orgName, submissionSuffix string) string {
	return strings.Join([]string{
		FilenamePrefix,
		now.UTC().Format("20060102150405"),
		sanitizeOrg(orgName),
		submissionSuffix,
		"xml",
	}, ".")
}

// sanitizeOrg keeps the organization segment to uppercase alphanumerics so
// the filename never carries separators that would break suffix parsing.
func sanitizeOrg(org string) string {
	var b strings.Builder
	for _, r := range org {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return "ORG"
	}
	return b.String()
}
