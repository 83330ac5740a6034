package extractor

import (
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

const FunctionTransferOwnership = "transferOwnership"

// TransferOwnershipExtractor detects transferOwnership@collection@newOwner
// calls on the ESDT system contract.
type TransferOwnershipExtractor struct{}

func (e *TransferOwnershipExtractor) Kind() Kind { return KindTransferOwnership }

func (e *TransferOwnershipExtractor) Extract(tx *multiversx.ShardTransaction, _ *api.TransactionDetail) Result {
	if tx.Receiver != multiversx.ESDTSystemContract || tx.FunctionName() != FunctionTransferOwnership {
		return nil
	}

	identifier := firstArg(tx)
	if identifier == "" {
		return nil
	}

	return &TransferOwnership{Identifier: identifier}
}
