package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/papertrove/papertrove/internal/suggest"
	"github.com/papertrove/papertrove/pkg/models"
)

func TestQueryPrefixOrdering(t *testing.T) {
	idx := New()
	ctx := context.Background()

	// Filename and keyword share the "fakt" prefix; the filename set has
	// higher priority and must rank first.
	res := &models.Resource{
		TenantID: "tenant-a",
		FileName: "faktura.pdf",
		Keywords: []string{"faktura-2024"},
	}
	if err := idx.IndexResource(ctx, res); err != nil {
		t.Fatalf("IndexResource() error = %v", err)
	}

	suggestions, err := idx.QueryPrefix(ctx, "tenant-a", "fakt", 10)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) < 2 {
		t.Fatalf("suggestions = %d, want at least 2", len(suggestions))
	}
	if suggestions[0].Type != models.SuggestionFile {
		t.Errorf("top suggestion type = %s, want file", suggestions[0].Type)
	}
	if suggestions[0].Score <= suggestions[1].Score {
		t.Errorf("scores not descending: %v then %v", suggestions[0].Score, suggestions[1].Score)
	}
}

func TestQueryPrefixNormalizesInput(t *testing.T) {
	idx := New()
	ctx := context.Background()

	res := &models.Resource{TenantID: "tenant-a", FileName: "skoda servis.pdf"}
	if err := idx.IndexResource(ctx, res); err != nil {
		t.Fatalf("IndexResource() error = %v", err)
	}

	suggestions, err := idx.QueryPrefix(ctx, "tenant-a", "Škod", 10)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) == 0 {
		t.Fatal("diacritic prefix found nothing")
	}
	if suggestions[0].Text != "skoda servis.pdf" {
		t.Errorf("suggestion = %q", suggestions[0].Text)
	}
}

func TestFrequencyAccumulates(t *testing.T) {
	idx := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := &models.Resource{TenantID: "tenant-a", Vendor: "Google"}
		if err := idx.IndexResource(ctx, res); err != nil {
			t.Fatalf("IndexResource() error = %v", err)
		}
	}

	suggestions, err := idx.QueryPrefix(ctx, "tenant-a", "goo", 10)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(suggestions))
	}
	// 3 occurrences at vendor priority 0.9
	if got := suggestions[0].Score; got < 2.69 || got > 2.71 {
		t.Errorf("Score = %v, want 2.7", got)
	}
}

func TestRemoveResourceFilename(t *testing.T) {
	idx := New()
	ctx := context.Background()

	res := &models.Resource{TenantID: "tenant-a", FileName: "report.pdf", Vendor: "Google"}
	if err := idx.IndexResource(ctx, res); err != nil {
		t.Fatalf("IndexResource() error = %v", err)
	}
	if err := idx.RemoveResource(ctx, res); err != nil {
		t.Fatalf("RemoveResource() error = %v", err)
	}

	suggestions, err := idx.QueryPrefix(ctx, "tenant-a", "repo", 10)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	for _, s := range suggestions {
		if s.Type == models.SuggestionFile {
			t.Errorf("filename suggestion survived removal: %q", s.Text)
		}
	}

	// Vendor terms are residuals and remain suggestible.
	suggestions, err = idx.QueryPrefix(ctx, "tenant-a", "goo", 10)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) != 1 {
		t.Errorf("vendor residual missing")
	}
}

func TestQueryPrefixTooShort(t *testing.T) {
	idx := New()
	ctx := context.Background()

	res := &models.Resource{TenantID: "tenant-a", FileName: "quarterly.pdf"}
	if err := idx.IndexResource(ctx, res); err != nil {
		t.Fatalf("IndexResource() error = %v", err)
	}

	for _, prefix := range []string{"", "q", " q "} {
		suggestions, err := idx.QueryPrefix(ctx, "tenant-a", prefix, 10)
		if err != nil {
			t.Fatalf("QueryPrefix(%q) error = %v", prefix, err)
		}
		if len(suggestions) != 0 {
			t.Errorf("QueryPrefix(%q) = %d suggestions, want 0 below minimum length", prefix, len(suggestions))
		}
	}

	suggestions, err := idx.QueryPrefix(ctx, "tenant-a", "qu", 10)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) != 1 {
		t.Errorf("two-character prefix = %d suggestions, want 1", len(suggestions))
	}
}

func TestQueryPrefixLimitClamped(t *testing.T) {
	idx := New()
	ctx := context.Background()

	for i := 0; i < suggest.MaxLimit+20; i++ {
		res := &models.Resource{
			TenantID: "tenant-a",
			FileName: fmt.Sprintf("report-%03d.pdf", i),
		}
		if err := idx.IndexResource(ctx, res); err != nil {
			t.Fatalf("IndexResource() error = %v", err)
		}
	}

	suggestions, err := idx.QueryPrefix(ctx, "tenant-a", "report", suggest.MaxLimit+20)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) != suggest.MaxLimit {
		t.Errorf("suggestions = %d, want clamped to %d", len(suggestions), suggest.MaxLimit)
	}

	suggestions, err = idx.QueryPrefix(ctx, "tenant-a", "report", 0)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) != suggest.DefaultLimit {
		t.Errorf("suggestions = %d, want default %d", len(suggestions), suggest.DefaultLimit)
	}
}

func TestTenantIsolation(t *testing.T) {
	idx := New()
	ctx := context.Background()

	res := &models.Resource{TenantID: "tenant-a", FileName: "secret.pdf"}
	if err := idx.IndexResource(ctx, res); err != nil {
		t.Fatalf("IndexResource() error = %v", err)
	}

	suggestions, err := idx.QueryPrefix(ctx, "tenant-b", "secr", 10)
	if err != nil {
		t.Fatalf("QueryPrefix() error = %v", err)
	}
	if len(suggestions) != 0 {
		t.Errorf("cross-tenant suggestions = %d, want 0", len(suggestions))
	}
}
