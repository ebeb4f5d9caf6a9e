package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"helixsim/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	mutations   map[string]model.MutationRun
	growth      map[string]model.GrowthRun
	reports     map[string]model.ResistanceReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.mutations = make(map[string]model.MutationRun)
	s.growth = make(map[string]model.GrowthRun)
	s.reports = make(map[string]model.ResistanceReport)
	return nil
}

func (s *MemoryStore) SaveMutationRun(_ context.Context, run model.MutationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("mutation run id is required")
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	run.Mutations = slices.Clone(run.Mutations)
	run.GenerationStats = slices.Clone(run.GenerationStats)
	s.mutations[run.ID] = run
	return nil
}

func (s *MemoryStore) GetMutationRun(_ context.Context, id string) (model.MutationRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.mutations[id]
	if !ok {
		return model.MutationRun{}, false, nil
	}
	run.Mutations = slices.Clone(run.Mutations)
	run.GenerationStats = slices.Clone(run.GenerationStats)
	return run, true, nil
}

func (s *MemoryStore) SaveGrowthRun(_ context.Context, run model.GrowthRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("growth run id is required")
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return err
	}
	run.GrowthHistory = slices.Clone(run.GrowthHistory)
	run.AdaptationLog = slices.Clone(run.AdaptationLog)
	s.growth[run.ID] = run
	return nil
}

func (s *MemoryStore) GetGrowthRun(_ context.Context, id string) (model.GrowthRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.growth[id]
	if !ok {
		return model.GrowthRun{}, false, nil
	}
	run.GrowthHistory = slices.Clone(run.GrowthHistory)
	run.AdaptationLog = slices.Clone(run.AdaptationLog)
	return run, true, nil
}

func (s *MemoryStore) SaveResistanceReport(_ context.Context, report model.ResistanceReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if report.ID == "" {
		return errors.New("resistance report id is required")
	}
	if err := checkVersion(report.VersionedRecord); err != nil {
		return err
	}
	report.Document = cloneDocument(report.Document)
	s.reports[report.ID] = report
	return nil
}

func (s *MemoryStore) GetResistanceReport(_ context.Context, id string) (model.ResistanceReport, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[id]
	if !ok {
		return model.ResistanceReport{}, false, nil
	}
	report.Document = cloneDocument(report.Document)
	return report, true, nil
}

func (s *MemoryStore) ListIDs(_ context.Context, kind RecordKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct{ id, created string }
	var entries []entry
	switch kind {
	case KindMutationRun:
		for id, r := range s.mutations {
			entries = append(entries, entry{id, r.CreatedAtUTC})
		}
	case KindGrowthRun:
		for id, r := range s.growth {
			entries = append(entries, entry{id, r.CreatedAtUTC})
		}
	case KindResistanceReport:
		for id, r := range s.reports {
			entries = append(entries, entry{id, r.CreatedAtUTC})
		}
	default:
		return nil, fmt.Errorf("unsupported record kind: %s", kind)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created == entries[j].created {
			return entries[i].id < entries[j].id
		}
		return entries[i].created > entries[j].created
	})
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.id)
	}
	return ids, nil
}

func cloneDocument(doc model.ResistanceDocument) model.ResistanceDocument {
	doc.DetectedResistance = slices.Clone(doc.DetectedResistance)
	for i := range doc.DetectedResistance {
		item := &doc.DetectedResistance[i]
		item.Genes = slices.Clone(item.Genes)
		item.Mechanisms = slices.Clone(item.Mechanisms)
	}
	doc.GenesAnalyzed = slices.Clone(doc.GenesAnalyzed)
	return doc
}
