package dataflow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowforge-io/flowforge/internal/domain"
)

type slotKey struct {
	nodeID string
	port   string
}

type slot struct {
	value     interface{}
	remaining int
}

// Service buffers node outputs for one run and routes them to declared
// consumers. Each buffered slot has a single writer (its producer node)
// and is evicted as soon as its last consumer has fetched it, so memory
// stays proportional to the execution frontier. Every publish and fetch
// is appended to the lineage trail.
type Service struct {
	graph  *domain.WorkflowGraph
	logger *slog.Logger

	mu      sync.Mutex
	slots   map[slotKey]*slot
	lineage []domain.LineageRecord
}

func New(graph *domain.WorkflowGraph, logger *slog.Logger) *Service {
	return &Service{
		graph:  graph,
		logger: logger.With("component", "dataflow"),
		slots:  make(map[slotKey]*slot),
	}
}

func (s *Service) Publish(nodeID string, result *domain.ExecutionResult) error {
	info, ok := s.graph.Infos[nodeID]
	if !ok {
		return fmt.Errorf("publish from unknown node %s: %w", nodeID, domain.ErrNotFound)
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, port := range info.Outputs {
		value, produced := result.Outputs[port.Name]
		if !produced {
			continue
		}
		consumers := s.graph.ConsumerCount(nodeID, port.Name)
		if consumers == 0 {
			// nothing downstream reads this slot; drop it immediately
			continue
		}
		s.slots[slotKey{nodeID, port.Name}] = &slot{value: value, remaining: consumers}
		s.lineage = append(s.lineage, domain.LineageRecord{
			Action:    domain.LineagePublish,
			Producer:  nodeID,
			Port:      port.Name,
			Timestamp: now,
		})
	}

	s.logger.Debug("outputs published",
		"node_id", nodeID,
		"buffered_slots", len(s.slots))

	return nil
}

// FetchInputs gathers and claims the consumer's inputs. Producer/consumer
// type compatibility is re-verified here; the parser already guarantees
// it, this is the defensive wiring-time check.
func (s *Service) FetchInputs(nodeID string) (map[string]interface{}, error) {
	info, ok := s.graph.Infos[nodeID]
	if !ok {
		return nil, fmt.Errorf("fetch for unknown node %s: %w", nodeID, domain.ErrNotFound)
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	// Gather first, claim after: an error leaves every refcount untouched
	// so sibling consumers of the same producer slots are unaffected.
	inputs := make(map[string]interface{})
	claims := make([]slotKey, 0, len(s.graph.Incoming[nodeID]))
	for _, conn := range s.graph.Incoming[nodeID] {
		inPort, _ := info.InputPort(conn.ToPort)
		outInfo := s.graph.Infos[conn.FromNode]
		if outPort, ok := outInfo.OutputPort(conn.FromPort); ok {
			if !outPort.DataType.Compatible(inPort.DataType) {
				return nil, &domain.DataValidationError{
					NodeID:   nodeID,
					Port:     conn.ToPort,
					Expected: inPort.DataType,
					Actual:   outPort.DataType,
				}
			}
		}

		key := slotKey{conn.FromNode, conn.FromPort}
		sl, ok := s.slots[key]
		if !ok {
			return nil, fmt.Errorf("input %s.%s from %s.%s: %w",
				nodeID, conn.ToPort, conn.FromNode, conn.FromPort, domain.ErrBufferedMissing)
		}

		if inPort.AllowMultiple {
			existing, _ := inputs[conn.ToPort].([]interface{})
			inputs[conn.ToPort] = append(existing, sl.value)
		} else {
			inputs[conn.ToPort] = sl.value
		}
		claims = append(claims, key)
	}

	for i, key := range claims {
		conn := s.graph.Incoming[nodeID][i]
		s.lineage = append(s.lineage, domain.LineageRecord{
			Action:    domain.LineageFetch,
			Producer:  conn.FromNode,
			Port:      conn.FromPort,
			Consumer:  nodeID,
			Timestamp: now,
		})
		s.decrement(key, now)
	}

	return inputs, nil
}

// Release drops the node's input claims without delivering values, so
// producers feeding a skipped node are still freed promptly.
func (s *Service) Release(nodeID string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, conn := range s.graph.Incoming[nodeID] {
		s.decrement(slotKey{conn.FromNode, conn.FromPort}, now)
	}
}

func (s *Service) decrement(key slotKey, now time.Time) {
	sl, ok := s.slots[key]
	if !ok {
		return
	}
	sl.remaining--
	if sl.remaining <= 0 {
		delete(s.slots, key)
		s.lineage = append(s.lineage, domain.LineageRecord{
			Action:    domain.LineageEvict,
			Producer:  key.nodeID,
			Port:      key.port,
			Timestamp: now,
		})
	}
}

func (s *Service) Lineage() []domain.LineageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LineageRecord(nil), s.lineage...)
}

func (s *Service) BufferedSlots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
