package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// receiptFilenamePattern is the strict shape of an allocated filename:
// date, underscore, positive suffix without leading zeros, jpg extension.
var receiptFilenamePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_[1-9]\d*\.jpg$`)

// BuildReceiptFilename assembles a filename from a date and suffix.
func BuildReceiptFilename(date string, suffix int) string {
	return fmt.Sprintf("%s_%d.jpg", date, suffix)
}

// ValidReceiptFilename reports whether name matches the strict filename
// pattern. Leading zeros and non-positive suffixes are rejected.
func ValidReceiptFilename(name string) bool {
	return receiptFilenamePattern.MatchString(name)
}

// SuffixOf extracts the integer suffix from a well-formed receipt filename.
func SuffixOf(name string) (int, bool) {
	if !ValidReceiptFilename(name) {
		return 0, false
	}
	base := strings.TrimSuffix(name, ".jpg")
	idx := strings.LastIndex(base, "_")
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// DateOf extracts the YYYY-MM-DD date from a well-formed receipt filename.
func DateOf(name string) (string, bool) {
	if !ValidReceiptFilename(name) {
		return "", false
	}
	return name[:10], true
}
