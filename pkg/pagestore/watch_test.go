package pagestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/calvinalkan/pageindex/pkg/pageindex"
	"github.com/calvinalkan/pageindex/pkg/pagestore"
)

type recordingNotifier struct {
	mu      sync.Mutex
	calls   []string
	updates int
}

func (r *recordingNotifier) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call)
}

func (r *recordingNotifier) OnStorePage(_ context.Context, p pageindex.Path) error {
	r.record("store " + p.Name())

	return nil
}

func (r *recordingNotifier) OnDeletePage(_ context.Context, p pageindex.Path) error {
	r.record("delete " + p.Name())

	return nil
}

func (r *recordingNotifier) CheckTree(_ context.Context, p pageindex.Path) error {
	r.record("check " + p.String())

	return nil
}

func (r *recordingNotifier) StartBackgroundUpdate(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.updates++
}

func (r *recordingNotifier) waitFor(t *testing.T, call string) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		found := slices.Contains(r.calls, call)
		r.mu.Unlock()

		if found {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t.Fatalf("no %q call within deadline, got %v", call, r.calls)
}

func Test_Watcher_ForwardsChanges_When_FilesEditedOnDisk(t *testing.T) {
	t.Parallel()

	s := newDirStore(t)
	rec := &recordingNotifier{}
	w := pagestore.NewWatcher(s, rec, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the root.
	time.Sleep(50 * time.Millisecond)

	file := filepath.Join(s.Root(), "Inbox.txt")

	err := os.WriteFile(file, []byte("hi"), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, "store Inbox")

	err = os.Remove(file)
	if err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, "delete Inbox")

	err = os.WriteFile(filepath.Join(s.Root(), ".hidden.txt"), []byte("x"), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	cancel()

	err = <-done
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.updates == 0 {
		t.Fatal("no background update started")
	}

	for _, c := range rec.calls {
		if c == "store .hidden" || c == "store hidden" {
			t.Fatalf("hidden file forwarded: %v", rec.calls)
		}
	}
}

func Test_Watcher_KeepsRunning_When_PageFailsToParse(t *testing.T) {
	t.Parallel()

	s := newDirStore(t)

	ix, err := pageindex.Open(t.Context(), pageindex.Config{Store: s})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	defer func() { _ = ix.Close() }()

	w := pagestore.NewWatcher(s, ix, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)

	err = os.WriteFile(filepath.Join(s.Root(), "Bad.txt"), []byte("oops [[unterminated"), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	// Let the broken page go through its own batch first.
	time.Sleep(100 * time.Millisecond)

	err = os.WriteFile(filepath.Join(s.Root(), "Good.txt"), []byte("fine"), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)

	for {
		select {
		case err := <-done:
			t.Fatalf("Run returned early: %v", err)
		default:
		}

		_, err = ix.Pages().Lookup(ctx, pageindex.MustPath("Good"))
		if err == nil {
			break
		}

		if time.Now().After(deadline) {
			t.Fatalf("Good never indexed: %v", err)
		}

		time.Sleep(10 * time.Millisecond)
	}

	_, err = ix.Pages().Lookup(ctx, pageindex.MustPath("Bad"))
	if err != nil {
		t.Fatalf("Lookup(Bad): %v", err)
	}

	cancel()

	err = <-done
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("Run: %v", err)
	}
}
