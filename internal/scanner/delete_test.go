package scanner

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/fenilsonani/diskscope/internal/testutil"
)

func scanFixture(t *testing.T, f *testutil.TestFixture, opts Options) *Scanner {
	t.Helper()
	if len(opts.Roots) == 0 {
		opts.Roots = []string{f.RootDir}
	}
	if opts.Threshold == 0 {
		opts.Threshold = 1
	}
	s := newTestScanner(t, opts)
	if _, err := s.Scan(context.Background()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return s
}

func TestDeleteItemsRemovesFilesAndUpdatesTotals(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileOfSize("a.bin", 10*kb)
	f.CreateFileOfSize("b.bin", 20*kb)
	f.CreateFileOfSize("c.bin", 30*kb)

	s := scanFixture(t, f, Options{})
	idA := idForPath(t, s, f.Path("a.bin"))
	idC := idForPath(t, s, f.Path("c.bin"))

	outcome := s.DeleteItems(context.Background(), []string{idA, idC})

	if outcome.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", outcome.SuccessCount)
	}
	if outcome.FailedCount != 0 {
		t.Errorf("FailedCount = %d, want 0: %v", outcome.FailedCount, outcome.ErrorMessages)
	}
	if outcome.RecoveredSize != 40*kb {
		t.Errorf("RecoveredSize = %d, want %d", outcome.RecoveredSize, 40*kb)
	}

	if f.Exists("a.bin") || f.Exists("c.bin") {
		t.Error("deleted files still exist on disk")
	}
	if !f.Exists("b.bin") {
		t.Error("untouched file was removed")
	}

	results := s.Results()
	if len(results) != 1 || results[0].Path != f.Path("b.bin") {
		t.Errorf("results after delete = %+v, want only b.bin", results)
	}
	if s.TotalSize() != 20*kb {
		t.Errorf("TotalSize = %d, want %d", s.TotalSize(), 20*kb)
	}
}

func TestDeletePackageDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileOfSize("Old.app/Contents/bin", 5*kb)
	f.CreateFileOfSize("Old.app/Contents/data", 5*kb)

	s := scanFixture(t, f, Options{PackageSuffixes: []string{".app"}})
	id := idForPath(t, s, f.Path("Old.app"))

	outcome := s.DeleteItems(context.Background(), []string{id})

	if outcome.SuccessCount != 1 {
		t.Fatalf("SuccessCount = %d, want 1: %v", outcome.SuccessCount, outcome.ErrorMessages)
	}
	if f.Exists("Old.app") {
		t.Error("package directory still exists after delete")
	}
}

func TestDeleteProtectedPathVetoed(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileOfSize("precious.bin", 10*kb)

	s := scanFixture(t, f, Options{
		Protected: func(path string) bool {
			return strings.HasSuffix(path, "precious.bin")
		},
	})
	id := idForPath(t, s, f.Path("precious.bin"))

	outcome := s.DeleteItems(context.Background(), []string{id})

	if outcome.FailedCount != 1 {
		t.Fatalf("FailedCount = %d, want 1", outcome.FailedCount)
	}
	if outcome.SuccessCount != 0 {
		t.Errorf("SuccessCount = %d, want 0", outcome.SuccessCount)
	}
	if !f.Exists("precious.bin") {
		t.Fatal("protected file was deleted")
	}
	if len(outcome.ErrorMessages) != 1 || !strings.Contains(outcome.ErrorMessages[0], "protected path") {
		t.Errorf("ErrorMessages = %v, want a protected path message", outcome.ErrorMessages)
	}

	// The vetoed item stays in the result list.
	if len(s.Results()) != 1 {
		t.Errorf("results = %+v, want the protected item kept", s.Results())
	}
}

func TestDeleteAlreadyGoneCountsAsSuccess(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateFileOfSize("gone.bin", 10*kb)

	s := scanFixture(t, f, Options{})
	id := idForPath(t, s, path)

	// Someone else removed it between scan and delete.
	if err := os.Remove(path); err != nil {
		t.Fatalf("setup remove: %v", err)
	}

	outcome := s.DeleteItems(context.Background(), []string{id})
	if outcome.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1: %v", outcome.SuccessCount, outcome.ErrorMessages)
	}
	if len(s.Results()) != 0 {
		t.Errorf("results = %+v, want empty", s.Results())
	}
}

func TestDeleteUnknownIDIsIgnored(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileOfSize("a.bin", 10*kb)

	s := scanFixture(t, f, Options{})

	outcome := s.DeleteItems(context.Background(), []string{"not-a-real-id"})
	if outcome.SuccessCount != 0 || outcome.FailedCount != 0 {
		t.Errorf("outcome = %+v, want all zero for unknown id", outcome)
	}
	if len(s.Results()) != 1 {
		t.Errorf("results = %+v, want untouched", s.Results())
	}
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileOfSize("a.bin", 10*kb)
	f.CreateFileOfSize("b.bin", 20*kb)

	s := scanFixture(t, f, Options{})
	s.Select(idForPath(t, s, f.Path("a.bin")))

	outcome := s.DeleteSelected(context.Background())
	if outcome.SuccessCount != 1 {
		t.Fatalf("SuccessCount = %d, want 1: %v", outcome.SuccessCount, outcome.ErrorMessages)
	}
	if got := s.Selected(); len(got) != 0 {
		t.Errorf("Selected = %v, want empty after delete", got)
	}
}

func TestSelectionClearedEvenWhenDeletionFails(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFileOfSize("precious.bin", 10*kb)

	s := scanFixture(t, f, Options{
		Protected: func(string) bool { return true },
	})
	s.Select(idForPath(t, s, f.Path("precious.bin")))

	outcome := s.DeleteSelected(context.Background())
	if outcome.FailedCount != 1 {
		t.Fatalf("FailedCount = %d, want 1", outcome.FailedCount)
	}
	if got := s.Selected(); len(got) != 0 {
		t.Errorf("Selected = %v, want cleared regardless of outcome", got)
	}
}

func TestDescribe(t *testing.T) {
	o := DeleteOutcome{SuccessCount: 2, FailedCount: 1, RecoveredSize: 4096}
	got := o.Describe()
	want := "deleted 2 item(s), 1 failed, recovered 4096 bytes"
	if got != want {
		t.Errorf("Describe = %q, want %q", got, want)
	}
}
