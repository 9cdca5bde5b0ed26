package cache

import (
	"context"
	"testing"
)

func TestMemoryStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, ok, _ := s.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown key")
	}

	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("get = %q, %v, %v", v, ok, err)
	}

	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatal(err)
	}
	v, _, _ = s.Get(ctx, "k")
	if v != "v2" {
		t.Errorf("expected overwrite, got %q", v)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryStore_ClearPrefix(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.Set(ctx, "visit:v1:pending_question", "q")
	s.Set(ctx, "visit:v1:max_questions", "12")
	s.Set(ctx, "visit:v2:pending_question", "other")

	if err := s.Clear(ctx, "visit:v1:"); err != nil {
		t.Fatal(err)
	}

	if _, ok, _ := s.Get(ctx, "visit:v1:pending_question"); ok {
		t.Error("v1 entry survived clear")
	}
	if _, ok, _ := s.Get(ctx, "visit:v2:pending_question"); !ok {
		t.Error("v2 entry was cleared by v1 prefix")
	}
}
