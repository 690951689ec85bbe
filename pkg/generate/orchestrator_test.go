package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"postflow/pkg/domain"
)

type fakeBatchStore struct {
	mu      sync.Mutex
	outputs map[string]domain.Output // key: platform|seriesIndex
	audits  []domain.AuditEntry
	nextID  int
	failAll bool
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{outputs: map[string]domain.Output{}}
}

func (s *fakeBatchStore) UpsertOutput(o domain.Output) (domain.Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return domain.Output{}, errors.New("store down")
	}
	key := fmt.Sprintf("%s|%d", o.Platform, o.SeriesIndex)
	if existing, ok := s.outputs[key]; ok {
		o.ID = existing.ID
	} else {
		s.nextID++
		o.ID = fmt.Sprintf("out-%d", s.nextID)
	}
	s.outputs[key] = o
	return o, nil
}

func (s *fakeBatchStore) AppendAudit(e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	return nil
}

// slotFailExecutor fails a chosen slot and succeeds on the rest.
type slotFailExecutor struct {
	mu       sync.Mutex
	calls    int
	failSlot Slot
}

func (e *slotFailExecutor) Execute(_ context.Context, req ExecRequest) (Result, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	slot := Slot{Platform: req.KeyParams.Platform, SeriesIndex: req.KeyParams.SeriesIndex}
	if slot == e.failSlot {
		return Result{}, errors.New("model call failed")
	}
	return Result{
		Content:    fmt.Sprintf("post for %s #%d", slot.Platform, slot.SeriesIndex),
		Provenance: ProvenanceAPI,
		Model:      "big",
	}, nil
}

func batchParams() Params {
	return Params{
		UserID:        "u1",
		ProjectID:     "p1",
		Step:          StepPost,
		SourceContent: "the source text",
		SeriesTotals:  map[string]int{"twitter": 2, "linkedin": 1},
	}
}

func TestRunPartialFailureBatch(t *testing.T) {
	store := newFakeBatchStore()
	exec := &slotFailExecutor{failSlot: Slot{Platform: "twitter", SeriesIndex: 2}}
	orch := NewOrchestrator(exec, store)

	slots := []Slot{
		{Platform: "linkedin", SeriesIndex: 1},
		{Platform: "twitter", SeriesIndex: 1},
		{Platform: "twitter", SeriesIndex: 2},
	}
	batch := orch.Run(context.Background(), batchParams(), slots)

	if batch.TotalRequested != 3 {
		t.Fatalf("totalRequested = %d, want 3", batch.TotalRequested)
	}
	if len(batch.Successful) != 2 || len(batch.Failed) != 1 {
		t.Fatalf("successful=%d failed=%d, want 2/1", len(batch.Successful), len(batch.Failed))
	}
	if batch.Failed[0].Platform != "twitter" || batch.Failed[0].SeriesIndex != 2 {
		t.Fatalf("failed slot = %+v", batch.Failed[0])
	}
	if batch.Failed[0].Error == "" {
		t.Fatalf("failed slot should carry an error message")
	}

	// All three slots persisted: 2 with content, 1 empty with error metadata.
	if len(store.outputs) != 3 {
		t.Fatalf("persisted outputs = %d, want 3", len(store.outputs))
	}
	failed := store.outputs["twitter|2"]
	if failed.Success || failed.Content != "" || failed.ErrorMessage == "" {
		t.Fatalf("failed output not persisted with error metadata: %+v", failed)
	}
	for _, key := range []string{"linkedin|1", "twitter|1"} {
		out := store.outputs[key]
		if !out.Success || out.Content == "" {
			t.Fatalf("output %s not persisted with content: %+v", key, out)
		}
	}
}

func TestRunWritesOneAuditEntryPerBatch(t *testing.T) {
	store := newFakeBatchStore()
	exec := &slotFailExecutor{failSlot: Slot{Platform: "none", SeriesIndex: 0}}
	orch := NewOrchestrator(exec, store)

	slots := ScheduleSlots(SeriesConfig{PerPlatform: map[string]int{"twitter": 2, "linkedin": 1}}, []string{"twitter", "linkedin"})
	orch.Run(context.Background(), batchParams(), slots)

	if len(store.audits) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(store.audits))
	}
	entry := store.audits[0]
	if entry.Event != "generation.batch" {
		t.Fatalf("audit event = %s", entry.Event)
	}
	if entry.Metadata["platforms"] != "linkedin,twitter" {
		t.Fatalf("audit platforms = %q", entry.Metadata["platforms"])
	}
	if entry.Metadata["succeeded"] != "3" || entry.Metadata["failed"] != "0" {
		t.Fatalf("audit counts = %+v", entry.Metadata)
	}
}

func TestRunIdempotentSlotIdentity(t *testing.T) {
	store := newFakeBatchStore()
	exec := &slotFailExecutor{failSlot: Slot{Platform: "none", SeriesIndex: 0}}
	orch := NewOrchestrator(exec, store)

	slots := []Slot{{Platform: "twitter", SeriesIndex: 1}}
	first := orch.Run(context.Background(), batchParams(), slots)
	second := orch.Run(context.Background(), batchParams(), slots)

	if len(store.outputs) != 1 {
		t.Fatalf("regenerating a slot must not create duplicates: %d records", len(store.outputs))
	}
	if first.Successful[0].OutputID != second.Successful[0].OutputID {
		t.Fatalf("regeneration changed the output identity: %s vs %s",
			first.Successful[0].OutputID, second.Successful[0].OutputID)
	}
}

func TestRunPersistenceFailureIsolatedPerSlot(t *testing.T) {
	store := newFakeBatchStore()
	store.failAll = true
	exec := &slotFailExecutor{failSlot: Slot{Platform: "none", SeriesIndex: 0}}
	orch := NewOrchestrator(exec, store)

	batch := orch.Run(context.Background(), batchParams(), []Slot{{Platform: "twitter", SeriesIndex: 1}})
	if len(batch.Failed) != 1 || batch.Failed[0].Error == "" {
		t.Fatalf("persistence failure should surface as a failed slot: %+v", batch)
	}
}

func TestRunEmptyContentCountsAsFailure(t *testing.T) {
	store := newFakeBatchStore()
	orch := NewOrchestrator(emptyExecutor{}, store)

	batch := orch.Run(context.Background(), batchParams(), []Slot{{Platform: "twitter", SeriesIndex: 1}})
	if len(batch.Failed) != 1 {
		t.Fatalf("empty content should fail validation: %+v", batch)
	}
	out := store.outputs["twitter|1"]
	if out.Success || out.ErrorMessage == "" {
		t.Fatalf("empty-content slot should persist with error metadata: %+v", out)
	}
}

type emptyExecutor struct{}

func (emptyExecutor) Execute(context.Context, ExecRequest) (Result, error) {
	return Result{Content: "   ", Provenance: ProvenanceAPI, Model: "big"}, nil
}
