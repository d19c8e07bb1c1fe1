package search

import "testing"

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	records := []CommentRecord{
		{ID: "cmt-1", Body: "the pricing section needs work", ItemID: "item-1", AnnotationID: "ann-1", AuthorName: "Avery"},
		{ID: "cmt-2", Body: "agreed, pricing is unclear", ItemID: "item-1", AnnotationID: "ann-1", AuthorName: "Blake"},
		{ID: "cmt-3", Body: "typo in the intro", ItemID: "item-2", AnnotationID: "ann-2", AuthorName: "Avery"},
	}
	for _, record := range records {
		if err := m.IndexComment(record); err != nil {
			t.Fatalf("IndexComment failed: %v", err)
		}
	}
	return m
}

func TestMemorySearchMatchesBody(t *testing.T) {
	m := seedMemory(t)

	results, total, err := m.Search(Query{Text: "PRICING"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Fatalf("Search = %d results (total %d), want 2", len(results), total)
	}
}

func TestMemorySearchFiltersByItem(t *testing.T) {
	m := seedMemory(t)

	results, _, err := m.Search(Query{Text: "avery", FilterItemID: "item-2"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "cmt-3" {
		t.Fatalf("Search = %+v, want [cmt-3]", results)
	}
}

func TestMemoryDeleteComment(t *testing.T) {
	m := seedMemory(t)

	if err := m.DeleteComment("cmt-1"); err != nil {
		t.Fatalf("DeleteComment failed: %v", err)
	}
	results, _, err := m.Search(Query{Text: "pricing"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "cmt-2" {
		t.Fatalf("Search after delete = %+v, want [cmt-2]", results)
	}
}
