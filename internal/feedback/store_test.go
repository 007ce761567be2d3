package feedback

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_OnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Append("тарифы", Record{Query: "в", Answer: "о", Rating: 1}); err != nil {
		t.Fatal(err)
	}
	n, err := s.Count("тарифы")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Re-opening must not re-apply migrations.
	s, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	s.Close()
}

func TestAppendAndCount(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 3; i++ {
		err := s.Append("аварии", Record{
			Query:  fmt.Sprintf("вопрос %d", i),
			Answer: fmt.Sprintf("ответ %d", i),
			Rating: 0.8,
		})
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	n, err := s.Count("аварии")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("Count = %d, want 3", n)
	}

	// Counts are per agent.
	n, err = s.Count("тарифы")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("Count(other agent) = %d, want 0", n)
	}
}

func TestAppend_RetentionEvictsOldest(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < retentionPerAgent+5; i++ {
		err := s.Append("тарифы", Record{
			Query:  fmt.Sprintf("вопрос %d", i),
			Answer: "ответ",
			Rating: 0.8,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Count("тарифы")
	if err != nil {
		t.Fatal(err)
	}
	if n != retentionPerAgent {
		t.Fatalf("Count = %d, want %d", n, retentionPerAgent)
	}

	// The survivors must be the newest records.
	recs, err := s.Sample("тарифы", retentionPerAgent)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range recs {
		if rec.Query == "вопрос 0" || rec.Query == "вопрос 4" {
			t.Fatalf("evicted record %q still present", rec.Query)
		}
	}
}

func TestSample_RequiresMinimumRecords(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 2; i++ {
		if err := s.Append("право", Record{Query: "в", Answer: "о", Rating: 1}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Sample("право", 3)
	if err != nil {
		t.Fatal(err)
	}
	if recs != nil {
		t.Fatalf("Sample below threshold = %v, want nil", recs)
	}

	if err := s.Append("право", Record{Query: "в", Answer: "о", Rating: 1}); err != nil {
		t.Fatal(err)
	}
	recs, err = s.Sample("право", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("Sample at threshold = %d records, want 3", len(recs))
	}
}

func TestSample_BestRatedFirst(t *testing.T) {
	s := openTestStore(t)

	ratings := []float64{0.8, 1.0, 0.9, 0.8}
	for i, r := range ratings {
		err := s.Append("счетчики", Record{
			Query:     fmt.Sprintf("вопрос %d", i),
			Answer:    "ответ",
			Rating:    r,
			CreatedAt: time.Date(2026, 8, 1, 0, i, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Sample("счетчики", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Rating != 1.0 || recs[1].Rating != 0.9 {
		t.Fatalf("ratings = %v %v, want 1.0 0.9", recs[0].Rating, recs[1].Rating)
	}
	// Equal ratings break by recency: the later 0.8 wins the last slot.
	if recs[2].Query != "вопрос 3" {
		t.Fatalf("third record = %q, want вопрос 3", recs[2].Query)
	}
}

func TestSample_ZeroN(t *testing.T) {
	s := openTestStore(t)
	recs, err := s.Sample("тко", 0)
	if err != nil {
		t.Fatal(err)
	}
	if recs != nil {
		t.Fatalf("Sample(0) = %v, want nil", recs)
	}
}
