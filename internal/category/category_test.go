package category

import (
	"context"
	"testing"

	"github.com/papertrove/papertrove/internal/store/memory"
	"github.com/papertrove/papertrove/pkg/models"
)

func TestListSeedsDefaults(t *testing.T) {
	svc := NewService(memory.New(0))
	ctx := context.Background()

	categories, err := svc.List(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(categories) != 3 {
		t.Fatalf("categories = %d, want 3 defaults", len(categories))
	}

	byType := make(map[string]*models.Category)
	for _, cat := range categories {
		byType[cat.Type] = cat
	}

	vendor := byType[models.CategoryVendor]
	if vendor == nil {
		t.Fatal("vendor category not seeded")
	}
	if !vendor.HasEntity("google") {
		t.Errorf("vendor seed missing google: %v", vendor.Entities)
	}
	found := false
	for _, w := range vendor.IgnoredWords {
		if w == "invoice" {
			found = true
		}
	}
	if !found {
		t.Errorf("vendor ignored words missing invoice: %v", vendor.IgnoredWords)
	}

	price := byType[models.CategoryPrice]
	if price == nil {
		t.Fatal("price category not seeded")
	}
	if len(price.Entities) != 0 {
		t.Errorf("price entities = %v, want empty", price.Entities)
	}
	if len(price.TriggerKeywords) == 0 {
		t.Error("price trigger keywords not seeded")
	}
}

func TestListDoesNotReseed(t *testing.T) {
	st := memory.New(0)
	svc := NewService(st)
	ctx := context.Background()

	if _, err := svc.List(ctx, "tenant-a"); err != nil {
		t.Fatalf("List() error = %v", err)
	}

	// Customize the vendor category, then list again: the
	// customization must survive.
	cat, err := svc.AddEntity(ctx, "tenant-a", models.CategoryVendor, "Škoda Auto")
	if err != nil {
		t.Fatalf("AddEntity() error = %v", err)
	}
	if !cat.HasEntity("skoda auto") {
		t.Errorf("entity not normalized and added: %v", cat.Entities)
	}

	categories, err := svc.List(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for _, c := range categories {
		if c.Type == models.CategoryVendor && !c.HasEntity("skoda auto") {
			t.Error("customization lost after second List()")
		}
	}
}

func TestUpsertValidation(t *testing.T) {
	svc := NewService(memory.New(0))
	ctx := context.Background()

	err := svc.Upsert(ctx, &models.Category{TenantID: "tenant-a", Type: "custom", MatchScore: 1.5})
	if err == nil {
		t.Error("Upsert() accepted out-of-range match score")
	}
	err = svc.Upsert(ctx, &models.Category{TenantID: "tenant-a", MatchScore: 0.8})
	if err == nil {
		t.Error("Upsert() accepted empty type")
	}
}

func TestEnabledFiltersDisabled(t *testing.T) {
	svc := NewService(memory.New(0))
	ctx := context.Background()

	if _, err := svc.List(ctx, "tenant-a"); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	cat, err := svc.Get(ctx, "tenant-a", models.CategoryPeople)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	cat.Enabled = false
	if err := svc.Upsert(ctx, cat); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	enabled, err := svc.Enabled(ctx, "tenant-a")
	if err != nil {
		t.Fatalf("Enabled() error = %v", err)
	}
	for _, c := range enabled {
		if c.Type == models.CategoryPeople {
			t.Error("disabled category returned by Enabled()")
		}
	}
	if len(enabled) != 2 {
		t.Errorf("enabled = %d, want 2", len(enabled))
	}
}

func TestRemoveEntity(t *testing.T) {
	svc := NewService(memory.New(0))
	ctx := context.Background()

	if _, err := svc.List(ctx, "tenant-a"); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	cat, err := svc.RemoveEntity(ctx, "tenant-a", models.CategoryVendor, "google")
	if err != nil {
		t.Fatalf("RemoveEntity() error = %v", err)
	}
	if cat.HasEntity("google") {
		t.Error("google still present after removal")
	}
}
