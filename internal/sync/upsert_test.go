package sync

import (
	"testing"

	"tenderscout/sync-service/internal/model"
)

func TestChunkTenders(t *testing.T) {
	cases := []struct {
		name      string
		total     int
		size      int
		wantSizes []int
	}{
		{"empty", 0, 100, nil},
		{"single partial chunk", 7, 100, []int{7}},
		{"exact multiple", 200, 100, []int{100, 100}},
		{"remainder chunk", 250, 100, []int{100, 100, 50}},
		{"size one", 3, 1, []int{1, 1, 1}},
		{"invalid size falls back to default", 150, 0, []int{100, 50}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tenders := make([]model.Tender, c.total)
			chunks := chunkTenders(tenders, c.size)
			if len(chunks) != len(c.wantSizes) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(c.wantSizes))
			}
			seen := 0
			for i, chunk := range chunks {
				if len(chunk) != c.wantSizes[i] {
					t.Errorf("chunk %d has %d tenders, want %d", i, len(chunk), c.wantSizes[i])
				}
				seen += len(chunk)
			}
			if seen != c.total {
				t.Errorf("chunks cover %d tenders, want %d", seen, c.total)
			}
		})
	}
}

func TestUpsertResult_Add(t *testing.T) {
	var total UpsertResult
	total.add(UpsertResult{Inserted: 3, Updated: 2})
	total.add(UpsertResult{Inserted: 1, Errored: 4})
	if total.Inserted != 4 || total.Updated != 2 || total.Errored != 4 {
		t.Errorf("total = %+v, want {4 2 4}", total)
	}
}
