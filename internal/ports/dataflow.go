package ports

import (
	"github.com/flowforge-io/flowforge/internal/domain"
)

// DataFlowPort routes node outputs to downstream inputs with
// reference-counted buffering and lineage recording. One instance serves
// exactly one run.
type DataFlowPort interface {
	// Publish buffers one node's outputs and makes them fetchable by
	// every declared consumer. Values on ports without consumers are
	// dropped immediately.
	Publish(nodeID string, result *domain.ExecutionResult) error

	// FetchInputs gathers the consumer's input values keyed by input
	// port, decrementing each source buffer's remaining-consumer count
	// and evicting buffers that reach zero.
	FetchInputs(nodeID string) (map[string]interface{}, error)

	// Release drops the consumer's claims without delivering values; used
	// for nodes that are skipped so finished producers are still freed.
	Release(nodeID string)

	// Lineage returns the append-only audit trail recorded so far.
	Lineage() []domain.LineageRecord

	// BufferedSlots reports how many output slots are currently held.
	BufferedSlots() int
}
