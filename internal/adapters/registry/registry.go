package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/flowforge-io/flowforge/internal/domain"
	"github.com/flowforge-io/flowforge/internal/ports"
)

// Registry is the explicit node-type registry injected into the engine
// and parser. Node types are registered once at startup; there is no
// global import-side-effect registration.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	plugins map[string]ports.NodePlugin
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger.With("component", "node-registry"),
		plugins: make(map[string]ports.NodePlugin),
	}
}

func (r *Registry) Register(plugin ports.NodePlugin) error {
	info := plugin.Info()
	if info.Type == "" {
		return fmt.Errorf("node plugin declares no type: %w", domain.ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[info.Type]; exists {
		return fmt.Errorf("node type %s: %w", info.Type, domain.ErrDuplicateNode)
	}
	r.plugins[info.Type] = plugin

	r.logger.Debug("node type registered",
		"node_type", info.Type,
		"category", info.Category)

	return nil
}

func (r *Registry) Get(nodeType string) (ports.NodePlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, ok := r.plugins[nodeType]
	if !ok {
		return nil, fmt.Errorf("node type %s: %w", nodeType, domain.ErrNotFound)
	}
	return plugin, nil
}

func (r *Registry) List() []domain.NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]domain.NodeInfo, 0, len(r.plugins))
	for _, plugin := range r.plugins {
		infos = append(infos, plugin.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}

func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var categories []string
	for _, plugin := range r.plugins {
		category := plugin.Info().Category
		if category != "" && !seen[category] {
			seen[category] = true
			categories = append(categories, category)
		}
	}
	sort.Strings(categories)
	return categories
}
