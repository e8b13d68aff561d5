package snapshot

import (
	"testing"
	"time"

	"github.com/hivemindhq/hivemind/internal/types"
)

type fakeStore struct {
	doc      Document
	restored *Document
}

func (f *fakeStore) Snapshot() Document {
	return f.doc
}

func (f *fakeStore) Restore(doc Document) {
	f.restored = &doc
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	source := &fakeStore{doc: Document{
		Memories: []types.Memory{{ID: 1, Content: "likes espresso"}},
		Tasks:    []types.Task{{ID: 1, Title: "index the repo", Status: types.TaskPending}},
	}}
	mgr := NewManager(dir, time.Minute, source, source)

	if err := mgr.Save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := mgr.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if source.restored == nil {
		t.Fatalf("expected Restore to be called")
	}
	if len(source.restored.Memories) != 1 || source.restored.Memories[0].Content != "likes espresso" {
		t.Fatalf("unexpected restored memories: %+v", source.restored.Memories)
	}
	if len(source.restored.Tasks) != 1 || source.restored.Tasks[0].Title != "index the repo" {
		t.Fatalf("unexpected restored tasks: %+v", source.restored.Tasks)
	}
	if source.restored.Version != formatVersion {
		t.Errorf("expected restored version %d, got %d", formatVersion, source.restored.Version)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	source := &fakeStore{}
	mgr := NewManager(dir, time.Minute, source, source)

	if err := mgr.Load(); err != nil {
		t.Fatalf("expected missing snapshot file to not be an error, got %v", err)
	}
	if source.restored != nil {
		t.Fatalf("expected Restore not to be called when no snapshot exists")
	}
}

func TestRunPerformsFinalSaveOnStop(t *testing.T) {
	dir := t.TempDir()
	source := &fakeStore{doc: Document{Memories: []types.Memory{{ID: 1, Content: "final state"}}}}
	mgr := NewManager(dir, time.Hour, source, source)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		mgr.Run(stop)
		close(done)
	}()

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return promptly after stop is closed")
	}

	if err := mgr.Load(); err != nil {
		t.Fatalf("load after final save failed: %v", err)
	}
	if len(source.restored.Memories) != 1 {
		t.Fatalf("expected final save to have persisted state before shutdown")
	}
}
