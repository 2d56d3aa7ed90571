package query

import (
	"context"
	"testing"

	"github.com/papertrove/papertrove/internal/category"
	"github.com/papertrove/papertrove/internal/observability"
	"github.com/papertrove/papertrove/internal/store/memory"
	"github.com/papertrove/papertrove/pkg/models"
)

func newTestAnalyzer() *Analyzer {
	svc := category.NewService(memory.New(0))
	return NewAnalyzer(svc, observability.NewNopLogger())
}

func TestAnalyzeCategoryActivation(t *testing.T) {
	a := newTestAnalyzer()
	ctx := context.Background()

	tests := []struct {
		name       string
		query      string
		wantVendor bool
	}{
		{
			name:       "vendor with ignored word",
			query:      "google invoice",
			wantVendor: true,
		},
		{
			name:       "vendor alone",
			query:      "google",
			wantVendor: true,
		},
		{
			name: "too many non-category words",
			// "tag" and "manager" exceed the default limit of one,
			// so content-level matches should dominate instead.
			query:      "google tag manager",
			wantVendor: false,
		},
		{
			name:       "one extra word within the limit",
			query:      "google march",
			wantVendor: true,
		},
		{
			name:       "no vendor entity",
			query:      "quarterly report",
			wantVendor: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := a.Analyze(ctx, "tenant-a", tt.query)
			_, got := intent.Categories[models.CategoryVendor]
			if got != tt.wantVendor {
				t.Errorf("vendor active = %v, want %v (categories: %v)", got, tt.wantVendor, intent.Categories)
			}
		})
	}
}

func TestAnalyzePriceTrigger(t *testing.T) {
	a := newTestAnalyzer()

	intent := a.Analyze(context.Background(), "tenant-a", "how much")
	match := intent.Categories[models.CategoryPrice]
	if match == nil {
		t.Fatalf("price category not active: %v", intent.Categories)
	}
	if !match.Triggered {
		t.Error("price match not flagged as triggered")
	}
	if len(match.MatchedEntities) != 0 {
		t.Errorf("price matched entities = %v, want none", match.MatchedEntities)
	}
}

func TestAnalyzeStrongSignals(t *testing.T) {
	a := newTestAnalyzer()
	ctx := context.Background()

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, intent *models.QueryIntent)
	}{
		{
			name:  "invoice id",
			query: "INV-2024 payment",
			check: func(t *testing.T, intent *models.QueryIntent) {
				if len(intent.IDs) != 1 || intent.IDs[0] != "INV-2024" {
					t.Errorf("IDs = %v", intent.IDs)
				}
				if !intent.HasStrongSignal {
					t.Error("HasStrongSignal = false")
				}
			},
		},
		{
			name:  "email",
			query: "mail from jan.novak@example.com",
			check: func(t *testing.T, intent *models.QueryIntent) {
				if len(intent.Emails) != 1 {
					t.Errorf("Emails = %v", intent.Emails)
				}
				if intent.CleanText != "mail from" {
					t.Errorf("CleanText = %q, want %q", intent.CleanText, "mail from")
				}
			},
		},
		{
			name:  "money amount",
			query: "125.50 EUR",
			check: func(t *testing.T, intent *models.QueryIntent) {
				if len(intent.Money) != 1 {
					t.Fatalf("Money = %v", intent.Money)
				}
				if intent.Money[0].AmountCents != 12550 || intent.Money[0].Currency != "EUR" {
					t.Errorf("Money[0] = %+v", intent.Money[0])
				}
			},
		},
		{
			name:  "plain phrase has no strong signal",
			query: "service agreement draft",
			check: func(t *testing.T, intent *models.QueryIntent) {
				if intent.HasStrongSignal {
					t.Error("HasStrongSignal = true for plain phrase")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, a.Analyze(ctx, "tenant-a", tt.query))
		})
	}
}

func TestAnalyzeFileTypeHints(t *testing.T) {
	a := newTestAnalyzer()
	ctx := context.Background()

	intent := a.Analyze(ctx, "tenant-a", "contract draft pdf")
	if len(intent.FileTypes) != 1 || intent.FileTypes[0] != "pdf" {
		t.Errorf("FileTypes = %v, want [pdf]", intent.FileTypes)
	}
	if intent.CleanText != "contract draft" {
		t.Errorf("CleanText = %q, want %q", intent.CleanText, "contract draft")
	}

	// A hint in the middle of the phrase is part of the content, not a
	// filter.
	intent = a.Analyze(ctx, "tenant-a", "pdf export tooling")
	if len(intent.FileTypes) != 0 {
		t.Errorf("FileTypes = %v, want none", intent.FileTypes)
	}
}

func TestAnalyzeNormalizesDiacritics(t *testing.T) {
	a := newTestAnalyzer()

	intent := a.Analyze(context.Background(), "tenant-a", "Škoda  Faktura")
	if intent.CleanText != "skoda faktura" {
		t.Errorf("CleanText = %q", intent.CleanText)
	}
	if _, ok := intent.Categories[models.CategoryVendor]; !ok {
		t.Errorf("skoda did not activate vendor: %v", intent.Categories)
	}
}

func TestAnalyzeDates(t *testing.T) {
	a := newTestAnalyzer()

	intent := a.Analyze(context.Background(), "tenant-a", "invoices from 15/03/2024")
	if len(intent.Dates) != 1 || intent.Dates[0] != "2024-03-15" {
		t.Errorf("Dates = %v, want [2024-03-15]", intent.Dates)
	}
	if intent.HasStrongSignal {
		t.Error("dates alone should not be a strong signal")
	}
}
