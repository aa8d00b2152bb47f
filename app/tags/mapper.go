// Package tags maintains the persisted translation table that re-domains
// externally sourced labels into the user's local taxonomy. The table is
// global state shared by every concurrent reconciliation pass; all access to
// the persisted table is serialized behind a single mutual-exclusion gate.
package tags

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

const DefaultNamespace = "feed/"

// Row is one persisted mapping: external-domain label to local-domain label.
type Row struct {
	External string
	Local    string
}

// Store is the durable home of the mapping table.
type Store interface {
	Load(ctx context.Context) (map[string]string, error)
	Append(ctx context.Context, rows []Row) error
	Rewrite(ctx context.Context, rows []Row) error
}

// UsageSnapshotter reports how often each label is currently used across the
// local corpus.
type UsageSnapshotter interface {
	TagUsage(ctx context.Context) (map[string]int, error)
}

type Mapper struct {
	store     Store
	usage     UsageSnapshotter
	namespace string

	// gate serializes every read-modify-write sequence against the
	// persisted table. Held across Refresh and Commit critical sections,
	// released on every path via defer.
	gate sync.Mutex

	// mu protects the in-memory maps below. Map only ever takes mu, never
	// gate, so it stays callable from any in-flight reconciliation.
	mu      sync.Mutex
	known   map[string]int    // local label -> use count snapshot
	mapping map[string]string // external label -> local label
	pending []Row
}

func NewMapper(store Store, usage UsageSnapshotter, namespace string) *Mapper {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Mapper{
		store:     store,
		usage:     usage,
		namespace: namespace,
		known:     make(map[string]int),
		mapping:   make(map[string]string),
	}
}

// Map resolves an external label to its local-domain form. Labels the user
// has already adopted verbatim pass through unchanged; everything else is
// namespaced. Absent mappings default to identity and are queued for the
// next Commit. No I/O happens here.
func (m *Mapper) Map(label string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	resolved := label
	if !strings.HasPrefix(label, m.namespace) {
		if _, adopted := m.known[label]; !adopted {
			resolved = m.namespace + label
		}
	}

	local, ok := m.mapping[resolved]
	if !ok {
		local = resolved
		m.mapping[resolved] = local
		m.pending = append(m.pending, Row{External: resolved, Local: local})
	}

	return local
}

// Refresh reloads the persisted table and the corpus usage snapshot, then
// garbage-collects identity mappings whose label has exactly one remaining
// use. Remaining known labels are re-registered to keep the table warm. Any
// removal triggers a rewrite of the persisted table, with the surviving rows
// queued for append.
func (m *Mapper) Refresh(ctx context.Context) error {
	if err := m.refreshLocked(ctx); err != nil {
		return err
	}
	return m.Commit(ctx, "refresh")
}

func (m *Mapper) refreshLocked(ctx context.Context) error {
	m.gate.Lock()
	defer m.gate.Unlock()

	table, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	usage, err := m.usage.TagUsage(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.mapping = table
	m.known = usage
	m.pending = nil
	m.mu.Unlock()

	removed := make(map[string]struct{})
	for label, count := range usage {
		if count == 1 && table[label] == label {
			m.mu.Lock()
			delete(m.mapping, label)
			m.mu.Unlock()
			removed[label] = struct{}{}
			slog.Debug("Dropped unused identity mapping", "tag", label)
		}
	}

	labels := make([]string, 0, len(usage))
	for label := range usage {
		if _, gone := removed[label]; !gone {
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	for _, label := range labels {
		m.Map(label)
	}

	if len(removed) > 0 {
		if err := m.store.Rewrite(ctx, nil); err != nil {
			return err
		}
		m.mu.Lock()
		m.pending = m.rowsLocked()
		m.mu.Unlock()
		slog.Info("Tag mapping table compacted", "removed", len(removed))
	}

	return nil
}

// Commit flushes pending rows as a single append. No-op when nothing is
// pending. On failure the rows are re-queued and the error propagates to the
// caller; the gate is released regardless.
func (m *Mapper) Commit(ctx context.Context, reason string) error {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return nil
	}
	rows := m.pending
	m.pending = nil
	m.mu.Unlock()

	m.gate.Lock()
	defer m.gate.Unlock()

	if err := m.store.Append(ctx, rows); err != nil {
		m.mu.Lock()
		m.pending = append(rows, m.pending...)
		m.mu.Unlock()
		return err
	}

	slog.Info("Tag mappings committed", "reason", reason, "rows", len(rows))
	return nil
}

// rowsLocked snapshots the full mapping table in deterministic order.
// Caller holds mu.
func (m *Mapper) rowsLocked() []Row {
	rows := make([]Row, 0, len(m.mapping))
	for external, local := range m.mapping {
		rows = append(rows, Row{External: external, Local: local})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].External < rows[j].External })
	return rows
}
