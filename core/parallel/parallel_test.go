package parallel

import (
	"sync/atomic"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		workers int
		want    []Chunk
	}{
		{"empty", 0, 4, nil},
		{"single worker", 5, 1, []Chunk{{0, 5}}},
		{"even", 8, 4, []Chunk{{0, 2}, {2, 4}, {4, 6}, {6, 8}}},
		{"uneven", 7, 3, []Chunk{{0, 3}, {3, 6}, {6, 7}}},
		{"more workers than rows", 2, 8, []Chunk{{0, 1}, {1, 2}}},
		{"zero workers", 3, 0, []Chunk{{0, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.rows, tt.workers)
			if len(got) != len(tt.want) {
				t.Fatalf("Split(%d, %d) = %v, want %v", tt.rows, tt.workers, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRowsVisitsEveryRowOnce(t *testing.T) {
	for _, rows := range []int{0, 1, 17, 1000} {
		visits := make([]int32, rows)
		RowsWithThreshold(rows, 16, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&visits[i], 1)
			}
		})
		for i, v := range visits {
			if v != 1 {
				t.Fatalf("rows=%d: row %d visited %d times", rows, i, v)
			}
		}
	}
}

func TestRowsWithThresholdRunsInline(t *testing.T) {
	calls := 0
	RowsWithThreshold(10, 10, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Errorf("range = [%d, %d), want [0, 10)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}
