package blob

import (
	"errors"
	"strings"
	"testing"

	"github.com/papertrove/papertrove/pkg/models"
)

func TestNewFileIDRoundTrip(t *testing.T) {
	fileID := NewFileID("PDF")

	year, month, name, err := ParseFileID(fileID)
	if err != nil {
		t.Fatalf("ParseFileID(%q) error = %v", fileID, err)
	}
	if len(year) != 4 || len(month) != 2 {
		t.Errorf("year/month = %q/%q", year, month)
	}
	if !strings.HasSuffix(name, ".pdf") {
		t.Errorf("name = %q, want .pdf suffix", name)
	}
}

func TestParseFileIDRejectsGarbage(t *testing.T) {
	for _, fileID := range []string{
		"",
		"../../etc/passwd",
		"202401_notauuid.pdf",
		"202401_00000000-0000-0000-0000-000000000000.PDF", // uppercase ext never generated
	} {
		if _, _, _, err := ParseFileID(fileID); !errors.Is(err, models.ErrValidation) {
			t.Errorf("ParseFileID(%q) error = %v, want ErrValidation", fileID, err)
		}
	}
}

func TestCleanExt(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pdf", ".pdf"},
		{".CSV", ".csv"},
		{" md ", ".md"},
		{"", ""},
		{"way-too/long.ext", ""},
		{"a.b", ""},
	}
	for _, tt := range tests {
		if got := CleanExt(tt.in); got != tt.want {
			t.Errorf("CleanExt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
