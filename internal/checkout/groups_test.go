package checkout

import (
	"reflect"
	"testing"
	"time"

	"batard/internal/models"
)

func window(from, to string) models.ScheduleWindow {
	return models.ScheduleWindow{From: from, To: to}
}

func testCategories() []models.Category {
	return []models.Category{
		{ID: 1, Name: "Bread", WeekdayTime: window("08:00", "12:00"), WeekendsTime: window("09:00", "13:00"), SlotSizeMinutes: 30, LeadTimeMinutes: 60},
		{ID: 2, Name: "Viennoiserie", WeekdayTime: window("08:00", "12:00"), WeekendsTime: window("09:00", "13:00"), SlotSizeMinutes: 30, LeadTimeMinutes: 60},
		{ID: 3, Name: "Cakes", WeekdayTime: window("10:00", "16:00"), WeekendsTime: window("10:00", "14:00"), SlotSizeMinutes: 60, LeadTimeMinutes: 1440},
	}
}

func line(productID, categoryID int64) models.CartLine {
	return models.CartLine{ProductID: productID, Quantity: 1, CategoryID: categoryID}
}

func TestComputePickupGroups(t *testing.T) {
	cats := testCategories()

	t.Run("categories with equal signature collapse", func(t *testing.T) {
		groups := ComputePickupGroups([]models.CartLine{line(10, 1), line(11, 2), line(12, 3)}, cats, "2025-01-10")

		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		if groups[0].CategoryNames != "Bread, Viennoiserie" {
			t.Errorf("names = %q", groups[0].CategoryNames)
		}
		if len(groups[0].Items) != 2 || len(groups[1].Items) != 1 {
			t.Errorf("unexpected membership: %d/%d", len(groups[0].Items), len(groups[1].Items))
		}
		if groups[0].Date != "2025-01-10" || groups[1].Date != "2025-01-10" {
			t.Error("groups must carry the shared date")
		}
	})

	t.Run("stale category reference drops the line only", func(t *testing.T) {
		groups := ComputePickupGroups([]models.CartLine{line(10, 1), line(99, 42)}, cats, "2025-01-10")

		if len(groups) != 1 {
			t.Fatalf("expected 1 group, got %d", len(groups))
		}
		if len(groups[0].Items) != 1 || groups[0].Items[0].ProductID != 10 {
			t.Errorf("unexpected items: %+v", groups[0].Items)
		}
	})

	t.Run("empty inputs", func(t *testing.T) {
		if got := ComputePickupGroups(nil, cats, "2025-01-10"); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
		if got := ComputePickupGroups([]models.CartLine{line(10, 1)}, nil, "2025-01-10"); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		lines := []models.CartLine{line(10, 1), line(11, 2), line(12, 3)}
		first := ComputePickupGroups(lines, cats, "2025-01-10")
		second := ComputePickupGroups(lines, cats, "2025-01-10")
		if !reflect.DeepEqual(first, second) {
			t.Error("two computations over unchanged inputs differ")
		}
	})

	t.Run("group set independent of permutation", func(t *testing.T) {
		forward := ComputePickupGroups([]models.CartLine{line(10, 1), line(12, 3)}, cats, "2025-01-10")
		backward := ComputePickupGroups([]models.CartLine{line(12, 3), line(10, 1)}, cats, "2025-01-10")

		keys := func(gs []PickupGroup) map[string]int {
			m := make(map[string]int)
			for _, g := range gs {
				m[g.Key] = len(g.Items)
			}
			return m
		}
		if !reflect.DeepEqual(keys(forward), keys(backward)) {
			t.Errorf("group sets differ: %v vs %v", keys(forward), keys(backward))
		}
	})
}

func TestPlanner(t *testing.T) {
	cats := testCategories()

	t.Run("date change resets slot selections", func(t *testing.T) {
		p := NewPlanner("2025-01-10")
		p.SetCategories(cats)
		p.SetCart([]models.CartLine{line(10, 1), line(12, 3)})

		groups := p.Groups()
		if len(groups) != 2 {
			t.Fatalf("expected 2 groups, got %d", len(groups))
		}
		if err := p.SelectSlot(groups[0].Key, "10:30"); err != nil {
			t.Fatal(err)
		}

		p.SetDate("2025-01-11")
		for _, g := range p.Groups() {
			if g.TimeSlot != "" {
				t.Errorf("slot %q survived a date change", g.TimeSlot)
			}
			if g.Date != "2025-01-11" {
				t.Errorf("date = %q", g.Date)
			}
		}
	})

	t.Run("select slot on unknown group", func(t *testing.T) {
		p := NewPlanner("2025-01-10")
		if err := p.SelectSlot("nope", "10:00"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("notes", func(t *testing.T) {
		p := NewPlanner("2025-01-10")
		p.SetCategories(cats)
		p.SetCart([]models.CartLine{line(10, 1)})

		key := p.Groups()[0].Key
		if err := p.SetNotes(key, "sliced please"); err != nil {
			t.Fatal(err)
		}
		if p.Groups()[0].OrderNotes != "sliced please" {
			t.Error("notes not recorded")
		}
	})
}

func TestPlannerStore(t *testing.T) {
	store := NewPlannerStore(time.Minute)

	p1 := store.GetOrCreate("sess-1")
	if p1 == nil {
		t.Fatal("expected planner")
	}
	if store.GetOrCreate("sess-1") != p1 {
		t.Error("same session should reuse the planner")
	}
	if store.Get("sess-2") != nil {
		t.Error("unknown session should return nil")
	}

	store.Delete("sess-1")
	if store.Get("sess-1") != nil {
		t.Error("deleted session still present")
	}
}
