// Package extractor detects token lifecycle events in shard transactions.
//
// Extractors are pure functions of their input. A nil Result means the
// transaction carries no event of that kind, which is never an error.
package extractor

import (
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

// Extractor detects one kind of event. detail may be nil.
type Extractor interface {
	Kind() Kind
	Extract(tx *multiversx.ShardTransaction, detail *api.TransactionDetail) Result
}

// Registry holds extractors in evaluation order.
type Registry struct {
	extractors []Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Default returns all built-in extractors.
func Default() *Registry {
	return NewRegistry(
		&NftCreateExtractor{},
		&NftUpdateAttributesExtractor{},
		&SftChangeExtractor{},
		&TransferOwnershipExtractor{},
	)
}

// Extractors returns the registered extractors in order.
func (r *Registry) Extractors() []Extractor {
	out := make([]Extractor, len(r.extractors))
	copy(out, r.extractors)

	return out
}

// ExtractAll runs every extractor and returns the matches in registry order.
func (r *Registry) ExtractAll(tx *multiversx.ShardTransaction, detail *api.TransactionDetail) []Result {
	results := make([]Result, 0)

	for _, e := range r.extractors {
		if res := e.Extract(tx, detail); res != nil {
			results = append(results, res)
		}
	}

	return results
}

// firstArg returns the first call argument decoded from hex.
func firstArg(tx *multiversx.ShardTransaction) string {
	args := tx.FunctionArgs()
	if len(args) == 0 {
		return ""
	}

	return multiversx.HexToString(args[0])
}
