package tags

import (
	"context"
	"errors"
	"testing"
)

type fakeStore struct {
	table      map[string]string
	appended   [][]Row
	rewrites   int
	loadErr    error
	appendErr  error
	rewriteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{table: make(map[string]string)}
}

func (s *fakeStore) Load(ctx context.Context) (map[string]string, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]string, len(s.table))
	for k, v := range s.table {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) Append(ctx context.Context, rows []Row) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, rows)
	for _, row := range rows {
		s.table[row.External] = row.Local
	}
	return nil
}

func (s *fakeStore) Rewrite(ctx context.Context, rows []Row) error {
	if s.rewriteErr != nil {
		return s.rewriteErr
	}
	s.rewrites++
	s.table = make(map[string]string)
	for _, row := range rows {
		s.table[row.External] = row.Local
	}
	return nil
}

type fakeUsage struct {
	counts map[string]int
	err    error
}

func (u *fakeUsage) TagUsage(ctx context.Context) (map[string]int, error) {
	if u.err != nil {
		return nil, u.err
	}
	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out, nil
}

func TestMapNamespacesUnknownLabel(t *testing.T) {
	m := NewMapper(newFakeStore(), &fakeUsage{}, "")

	got := m.Map("technology")
	if got != "feed/technology" {
		t.Errorf("Expected 'feed/technology', got: %s", got)
	}
}

func TestMapCustomNamespace(t *testing.T) {
	m := NewMapper(newFakeStore(), &fakeUsage{}, "ext/")

	got := m.Map("technology")
	if got != "ext/technology" {
		t.Errorf("Expected 'ext/technology', got: %s", got)
	}
}

func TestMapAdoptedLabelPassesThrough(t *testing.T) {
	store := newFakeStore()
	usage := &fakeUsage{counts: map[string]int{"technology": 5}}
	m := NewMapper(store, usage, "")

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := m.Map("technology")
	if got != "technology" {
		t.Errorf("Expected adopted label to pass through, got: %s", got)
	}
}

func TestMapStable(t *testing.T) {
	m := NewMapper(newFakeStore(), &fakeUsage{}, "")

	first := m.Map("golang")
	second := m.Map("golang")
	if first != second {
		t.Errorf("Expected stable mapping, got: %s then %s", first, second)
	}
}

func TestMapAlreadyNamespacedLabel(t *testing.T) {
	m := NewMapper(newFakeStore(), &fakeUsage{}, "")

	got := m.Map("feed/technology")
	if got != "feed/technology" {
		t.Errorf("Expected namespaced label unchanged, got: %s", got)
	}
}

func TestCommitFlushesPendingRows(t *testing.T) {
	store := newFakeStore()
	m := NewMapper(store, &fakeUsage{}, "")

	m.Map("golang")
	m.Map("rust")

	if err := m.Commit(context.Background(), "test"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(store.appended) != 1 {
		t.Fatalf("Expected 1 append batch, got: %d", len(store.appended))
	}
	if len(store.appended[0]) != 2 {
		t.Errorf("Expected 2 rows appended, got: %d", len(store.appended[0]))
	}
	if store.table["feed/golang"] != "feed/golang" {
		t.Errorf("Expected identity mapping persisted, got: %s", store.table["feed/golang"])
	}
}

func TestCommitNoopWhenEmpty(t *testing.T) {
	store := newFakeStore()
	m := NewMapper(store, &fakeUsage{}, "")

	if err := m.Commit(context.Background(), "test"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(store.appended) != 0 {
		t.Errorf("Expected no append for empty pending set, got: %d", len(store.appended))
	}
}

func TestCommitRequeuesOnFailure(t *testing.T) {
	store := newFakeStore()
	store.appendErr = errors.New("database locked")
	m := NewMapper(store, &fakeUsage{}, "")

	m.Map("golang")

	if err := m.Commit(context.Background(), "test"); err == nil {
		t.Fatal("Expected error from failed append")
	}

	store.appendErr = nil
	if err := m.Commit(context.Background(), "retry"); err != nil {
		t.Fatalf("Expected retry to succeed, got: %v", err)
	}
	if len(store.appended) != 1 || len(store.appended[0]) != 1 {
		t.Errorf("Expected requeued row flushed on retry, got: %v", store.appended)
	}
}

func TestRefreshLoadsPersistedTable(t *testing.T) {
	store := newFakeStore()
	store.table["feed/golang"] = "programming"
	usage := &fakeUsage{counts: map[string]int{"programming": 4}}
	m := NewMapper(store, usage, "")

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	got := m.Map("golang")
	if got != "programming" {
		t.Errorf("Expected persisted mapping applied, got: %s", got)
	}
}

func TestRefreshRemovesSingleUseIdentityMappings(t *testing.T) {
	store := newFakeStore()
	store.table["feed/stale"] = "feed/stale"
	store.table["feed/active"] = "feed/active"
	usage := &fakeUsage{counts: map[string]int{
		"feed/stale":  1,
		"feed/active": 3,
	}}
	m := NewMapper(store, usage, "")

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if store.rewrites != 1 {
		t.Fatalf("Expected 1 rewrite, got: %d", store.rewrites)
	}
	if _, ok := store.table["feed/stale"]; ok {
		t.Error("Expected stale identity mapping removed")
	}
	if store.table["feed/active"] != "feed/active" {
		t.Error("Expected active mapping to survive compaction")
	}
}

func TestRefreshKeepsRenamedSingleUseMappings(t *testing.T) {
	store := newFakeStore()
	store.table["feed/golang"] = "programming"
	usage := &fakeUsage{counts: map[string]int{"feed/golang": 1}}
	m := NewMapper(store, usage, "")

	if err := m.Refresh(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if store.rewrites != 0 {
		t.Errorf("Expected no rewrite for renamed mapping, got: %d", store.rewrites)
	}
	if store.table["feed/golang"] != "programming" {
		t.Error("Expected renamed mapping preserved")
	}
}

func TestRefreshLoadFailure(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("no such table")
	m := NewMapper(store, &fakeUsage{}, "")

	if err := m.Refresh(context.Background()); err == nil {
		t.Fatal("Expected error when load fails")
	}
}
