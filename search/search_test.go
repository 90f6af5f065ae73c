package search

import (
	"context"
	"testing"

	"github.com/erikbos/flux-server/database/model"
)

func newTestIndex(t *testing.T) *Search {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.IndexRecords(context.Background(), []model.Record{
		{ID: "m1", Type: model.ContentTypeMovie, Name: "Heat", Description: "bank robbery in Los Angeles"},
		{ID: "m2", Type: model.ContentTypeMovie, Name: "The Heat of the Night"},
		{ID: "s1", Type: model.ContentTypeSeries, Name: "True Detective", Description: "louisiana murders"},
	}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSearchExactNameRanksFirst(t *testing.T) {
	s := newTestIndex(t)

	ids, err := s.Search(context.Background(), "heat", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) < 2 {
		t.Fatalf("want both heat records, got %v", ids)
	}
	if ids[0] != "m1" {
		t.Fatalf("exact title must rank first, got %v", ids)
	}
}

func TestSearchFuzzyMatch(t *testing.T) {
	s := newTestIndex(t)

	// One edit away from "detective".
	ids, err := s.Search(context.Background(), "detectiv", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) == 0 || ids[0] != "s1" {
		t.Fatalf("fuzzy match: got %v", ids)
	}
}

func TestSearchDescription(t *testing.T) {
	s := newTestIndex(t)

	ids, err := s.Search(context.Background(), "robbery", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) == 0 || ids[0] != "m1" {
		t.Fatalf("description match: got %v", ids)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newTestIndex(t)

	ids, err := s.Search(context.Background(), "   ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Fatalf("blank query: got %v", ids)
	}
}

func TestSearchRemove(t *testing.T) {
	s := newTestIndex(t)
	ctx := context.Background()

	if err := s.Remove(ctx, "s1"); err != nil {
		t.Fatal(err)
	}
	ids, err := s.Search(ctx, "detective", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if id == "s1" {
			t.Fatal("removed record still in index")
		}
	}
}
