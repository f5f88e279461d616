package exam

import (
	"fmt"
	"testing"
)

func namedPool(n int) []Question {
	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{ID: fmt.Sprintf("q%02d", i), Text: fmt.Sprintf("question %d", i), CorrectAnswer: "A"}
	}
	return qs
}

func TestDrawSample_DistinctFromPool(t *testing.T) {
	pool := namedPool(10)
	inPool := map[string]bool{}
	for _, q := range pool {
		inPool[q.ID] = true
	}

	got, err := DrawSample(pool, SampleSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != SampleSize {
		t.Fatalf("got %d questions, want %d", len(got), SampleSize)
	}
	seen := map[string]bool{}
	for _, q := range got {
		if !inPool[q.ID] {
			t.Fatalf("sampled %s not in pool", q.ID)
		}
		if seen[q.ID] {
			t.Fatalf("question %s drawn twice", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestDrawSample_PoolTooSmall(t *testing.T) {
	_, err := DrawSample(namedPool(4), SampleSize)
	if !IsKind(err, KindInternal) {
		t.Fatalf("got %v, want internal invariant violation", err)
	}
}

func TestDrawSample_ExactPoolSize(t *testing.T) {
	got, err := DrawSample(namedPool(SampleSize), SampleSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != SampleSize {
		t.Fatalf("got %d questions, want %d", len(got), SampleSize)
	}
}

// Every pool member should show up across enough independent draws; a
// sampler with shared shuffle state or a stuck source would not cover
// the pool.
func TestDrawSample_CoversPool(t *testing.T) {
	pool := namedPool(10)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		got, err := DrawSample(pool, SampleSize)
		if err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
		for _, q := range got {
			seen[q.ID] = true
		}
	}
	if len(seen) != len(pool) {
		t.Fatalf("only %d of %d questions ever drawn", len(seen), len(pool))
	}
}
