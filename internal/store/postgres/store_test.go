package postgres

import (
	"testing"

	"github.com/papertrove/papertrove/pkg/models"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	original := []float32{0.1, -0.5, 2, 0}

	encoded := encodeEmbedding(original)
	if !encoded.Valid {
		t.Fatal("encodeEmbedding() not valid for non-empty input")
	}
	decoded := decodeEmbedding(encoded.String)
	if len(decoded) != len(original) {
		t.Fatalf("decoded length = %d, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("decoded[%d] = %v, want %v", i, decoded[i], original[i])
		}
	}

	if encodeEmbedding(nil).Valid {
		t.Error("encodeEmbedding(nil) should be NULL")
	}
	if decodeEmbedding("") != nil {
		t.Error("decodeEmbedding(\"\") should be nil")
	}
}

func TestChunkFieldColumn(t *testing.T) {
	tests := []struct {
		field   models.ChunkField
		want    string
		wantErr bool
	}{
		{models.ChunkFieldSearchable, "searchable_text", false},
		{models.ChunkFieldText, "text_normalized", false},
		{models.ChunkFieldOCR, "ocr_text_normalized", false},
		{models.ChunkFieldImageDescription, "image_description", false},
		{models.ChunkField("content; DROP TABLE chunks"), "", true},
	}

	for _, tt := range tests {
		got, err := chunkFieldColumn(tt.field)
		if tt.wantErr {
			if err == nil {
				t.Errorf("chunkFieldColumn(%q) expected error", tt.field)
			}
			continue
		}
		if err != nil {
			t.Errorf("chunkFieldColumn(%q) error = %v", tt.field, err)
			continue
		}
		if got != tt.want {
			t.Errorf("chunkFieldColumn(%q) = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"100%", `100\%`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCheckDimension(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		want    int
		wantErr bool
	}{
		{"match", "1536", 1536, false},
		{"match with whitespace", " 1536\n", 1536, false},
		{"mismatch", "1536", 768, true},
		{"garbage", "not-a-number", 1536, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkDimension(tt.stored, tt.want)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkDimension(%q, %d) error = %v, wantErr %v",
					tt.stored, tt.want, err, tt.wantErr)
			}
		})
	}
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("no embedded migrations found")
	}
	for _, m := range migrations {
		if m.UpSQL == "" {
			t.Errorf("migration %s has no up SQL", m.ID)
		}
	}
}
