// Package pathutils builds and splits the logical POSIX-style storage paths
// shared by every backend, e.g. /receipts/2025/06/14/2025-06-14_3.jpg.
package pathutils

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// IndexFilename is the day manifest filename inside each date folder.
const IndexFilename = "index.json"

var datePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// ReceiptDir returns the logical folder for a calendar date,
// /receipts/YYYY/MM/DD.
func ReceiptDir(date string) (string, error) {
	m := datePattern.FindStringSubmatch(date)
	if m == nil {
		return "", fmt.Errorf("invalid date '%s': want YYYY-MM-DD", date)
	}
	return path.Join("/receipts", m[1], m[2], m[3]), nil
}

// ReceiptPath returns the full logical path for a receipt filename within
// its date folder.
func ReceiptPath(date, filename string) (string, error) {
	dir, err := ReceiptDir(date)
	if err != nil {
		return "", err
	}
	return path.Join(dir, filename), nil
}

// DayIndexPath returns the logical path of the day manifest for a date.
func DayIndexPath(date string) (string, error) {
	dir, err := ReceiptDir(date)
	if err != nil {
		return "", err
	}
	return path.Join(dir, IndexFilename), nil
}

// MonthIndexPath returns the logical path of the monthly rollup index,
// /index/months/YYYY-MM.json.
func MonthIndexPath(month string) (string, error) {
	if !regexp.MustCompile(`^\d{4}-\d{2}$`).MatchString(month) {
		return "", fmt.Errorf("invalid month '%s': want YYYY-MM", month)
	}
	return path.Join("/index", "months", month+".json"), nil
}

// Split breaks a logical path into its non-empty segments. The leading
// slash is implied; "/receipts/2025/06" yields ["receipts", "2025", "06"].
func Split(logical string) []string {
	cleaned := path.Clean("/" + strings.TrimPrefix(logical, "/"))
	if cleaned == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(cleaned, "/"), "/")
}

// Parent returns the logical parent folder of a path, "/" for top-level
// entries.
func Parent(logical string) string {
	parent := path.Dir(path.Clean("/" + strings.TrimPrefix(logical, "/")))
	return parent
}

// Base returns the final segment of a logical path.
func Base(logical string) string {
	return path.Base(path.Clean("/" + strings.TrimPrefix(logical, "/")))
}

// Join joins segments into a clean logical path rooted at "/".
func Join(segments ...string) string {
	return path.Join(append([]string{"/"}, segments...)...)
}

// OSPath maps a logical path onto the filesystem below rootDir.
func OSPath(rootDir, logical string) string {
	return filepath.Join(rootDir, filepath.FromSlash(strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(logical, "/")), "/")))
}
