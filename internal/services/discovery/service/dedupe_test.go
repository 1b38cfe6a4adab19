package service

import (
	"context"
	"testing"

	"webgap/internal/services/discovery/domain"
)

func TestDeduperFirstOccurrenceWins(t *testing.T) {
	d := NewDeduper(domain.ScopeInvocation, nil, "")

	a := domain.BusinessRecord{Identity: "osm:node:1", Name: "First"}
	aDup := domain.BusinessRecord{Identity: "osm:node:1", Name: "Duplicate"}
	b := domain.BusinessRecord{Identity: "osm:node:2", Name: "Second"}

	out := d.Merge(context.Background(),
		[]domain.BusinessRecord{a, b},
		[]domain.BusinessRecord{aDup},
	)

	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Name != "First" || out[1].Name != "Second" {
		t.Errorf("out = %+v", out)
	}
}

func TestDeduperAcrossTiles(t *testing.T) {
	d := NewDeduper(domain.ScopeInvocation, nil, "")
	b := []domain.BusinessRecord{{Identity: "osm:node:1"}}

	first := d.Merge(context.Background(), b)
	second := d.Merge(context.Background(), b)

	if len(first) != 1 || len(second) != 0 {
		t.Errorf("first=%d second=%d, want 1 and 0", len(first), len(second))
	}
	if d.Unique() != 1 {
		t.Errorf("Unique = %d, want 1", d.Unique())
	}
}

func TestDeduperSkipsEmptyIdentity(t *testing.T) {
	d := NewDeduper(domain.ScopeInvocation, nil, "")
	out := d.Merge(context.Background(), []domain.BusinessRecord{{Name: "no identity"}})
	if len(out) != 0 {
		t.Errorf("len = %d, want 0", len(out))
	}
}

func TestDeduperPersistentScope(t *testing.T) {
	cache := newMemCache()
	cache.reported["hamburg|bakery/osm:node:1"] = true

	d := NewDeduper(domain.ScopePersistent, cache, "hamburg|bakery")
	out := d.Merge(context.Background(), []domain.BusinessRecord{
		{Identity: "osm:node:1"},
		{Identity: "osm:node:2"},
	})

	if len(out) != 1 || out[0].Identity != "osm:node:2" {
		t.Fatalf("out = %+v, want only the unreported record", out)
	}

	d.Emitted(context.Background(), "osm:node:2")
	if !cache.reported["hamburg|bakery/osm:node:2"] {
		t.Error("Emitted did not persist the identity")
	}
}
