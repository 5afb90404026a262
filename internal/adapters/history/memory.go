package history

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Store is an in-memory execution history with a bounded record count.
// Oldest records are evicted first once the cap is reached.
type Store struct {
	mu         sync.RWMutex
	records    []ports.ExecutionRecord
	maxRecords int
	logger     *slog.Logger
}

func NewStore(config domain.HistoryConfig, logger *slog.Logger) *Store {
	return &Store{
		maxRecords: config.MaxRecords,
		logger:     logger.With("component", "history"),
	}
}

func (s *Store) Append(record ports.ExecutionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if s.maxRecords > 0 && len(s.records) > s.maxRecords {
		evicted := len(s.records) - s.maxRecords
		s.records = append([]ports.ExecutionRecord(nil), s.records[evicted:]...)
		s.logger.Debug("evicted oldest history records", "count", evicted)
	}
}

func (s *Store) List(workflowID string) []ports.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ports.ExecutionRecord
	for _, r := range s.records {
		if r.WorkflowID == workflowID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) All() []ports.ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.ExecutionRecord(nil), s.records...)
}

// Templates is an in-memory versioned template store. Saving a
// definition under an existing template id appends a new version.
type Templates struct {
	mu       sync.RWMutex
	versions map[string][]ports.WorkflowTemplate
	logger   *slog.Logger
}

func NewTemplates(logger *slog.Logger) *Templates {
	return &Templates{
		versions: make(map[string][]ports.WorkflowTemplate),
		logger:   logger.With("component", "templates"),
	}
}

func (t *Templates) Save(def *domain.WorkflowDefinition) (ports.WorkflowTemplate, error) {
	if def == nil || def.ID == "" {
		return ports.WorkflowTemplate{}, fmt.Errorf("template definition: %w", domain.ErrInvalidInput)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tpl := ports.WorkflowTemplate{
		TemplateID: def.ID,
		Version:    len(t.versions[def.ID]) + 1,
		SavedAt:    time.Now(),
		Definition: def,
	}
	t.versions[def.ID] = append(t.versions[def.ID], tpl)

	t.logger.Info("template saved", "template_id", tpl.TemplateID, "version", tpl.Version)
	return tpl, nil
}

// Get returns the latest version of a template.
func (t *Templates) Get(templateID string) (ports.WorkflowTemplate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := t.versions[templateID]
	if len(history) == 0 {
		return ports.WorkflowTemplate{}, fmt.Errorf("template %s: %w", templateID, domain.ErrNotFound)
	}
	return history[len(history)-1], nil
}

func (t *Templates) GetVersion(templateID string, version int) (ports.WorkflowTemplate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	history := t.versions[templateID]
	if version < 1 || version > len(history) {
		return ports.WorkflowTemplate{}, fmt.Errorf("template %s version %d: %w", templateID, version, domain.ErrNotFound)
	}
	return history[version-1], nil
}

// List returns the latest version of every template, ordered by id.
func (t *Templates) List() []ports.WorkflowTemplate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]ports.WorkflowTemplate, 0, len(t.versions))
	for _, history := range t.versions {
		out = append(out, history[len(history)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TemplateID < out[j].TemplateID })
	return out
}
