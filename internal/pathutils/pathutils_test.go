package pathutils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiptDir(t *testing.T) {
	dir, err := ReceiptDir("2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, "/receipts/2025/06/14", dir)

	_, err = ReceiptDir("2025-6-14")
	assert.Error(t, err)

	_, err = ReceiptDir("garbage")
	assert.Error(t, err)
}

func TestReceiptPath(t *testing.T) {
	p, err := ReceiptPath("2025-06-14", "2025-06-14_3.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/receipts/2025/06/14/2025-06-14_3.jpg", p)
}

func TestDayIndexPath(t *testing.T) {
	p, err := DayIndexPath("2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, "/receipts/2025/06/14/index.json", p)
}

func TestMonthIndexPath(t *testing.T) {
	p, err := MonthIndexPath("2025-06")
	require.NoError(t, err)
	assert.Equal(t, "/index/months/2025-06.json", p)

	_, err = MonthIndexPath("2025-6")
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"Simple", "/receipts/2025/06", []string{"receipts", "2025", "06"}},
		{"NoLeadingSlash", "receipts/2025", []string{"receipts", "2025"}},
		{"TrailingSlash", "/receipts/", []string{"receipts"}},
		{"Root", "/", nil},
		{"Empty", "", nil},
		{"DoubleSlash", "/receipts//2025", []string{"receipts", "2025"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Split(tt.path))
		})
	}
}

func TestParentAndBase(t *testing.T) {
	assert.Equal(t, "/receipts/2025", Parent("/receipts/2025/06"))
	assert.Equal(t, "/", Parent("/receipts"))
	assert.Equal(t, "06", Base("/receipts/2025/06"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/receipts/2025/06", Join("receipts", "2025", "06"))
}

func TestOSPath(t *testing.T) {
	got := OSPath("/data", "/receipts/2025/06/14/index.json")
	assert.Equal(t, filepath.Join("/data", "receipts", "2025", "06", "14", "index.json"), got)
}
