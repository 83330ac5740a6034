package extractor

import (
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

// supplyChangingFunctions are built-in functions a holder calls on itself
// to change the supply of one of their semi-fungible tokens.
var supplyChangingFunctions = map[string]struct{}{
	"ESDTNFTAddQuantity": {},
	"ESDTNFTBurn":        {},
}

// collectionChangingFunctions are ESDT system contract endpoints that
// alter a collection's type, ownership or roles.
var collectionChangingFunctions = map[string]struct{}{
	"changeSFTToMetaESDT":      {},
	"transferOwnership":        {},
	"setSpecialRole":           {},
	"unSetSpecialRole":         {},
	"transferNFTCreateRole":    {},
	"stopNFTCreate":            {},
	"freezeSingleNFT":          {},
	"unFreezeSingleNFT":        {},
	"wipeSingleNFT":            {},
	"controlChanges":           {},
	"changeToMultiShardCreate": {},
	"changeToDynamic":          {},
}

// SftChangeExtractor detects supply changes of semi-fungible tokens and
// collection changes made through the ESDT system contract.
type SftChangeExtractor struct{}

func (e *SftChangeExtractor) Kind() Kind { return KindSftChange }

func (e *SftChangeExtractor) Extract(tx *multiversx.ShardTransaction, _ *api.TransactionDetail) Result {
	function := tx.FunctionName()
	if function == "" {
		return nil
	}

	_, supplyChange := supplyChangingFunctions[function]
	_, collectionChange := collectionChangingFunctions[function]

	switch {
	case supplyChange && tx.IsSelfCall():
	case collectionChange && tx.Receiver == multiversx.ESDTSystemContract:
	default:
		return nil
	}

	collection := firstArg(tx)
	if collection == "" {
		return nil
	}

	return &SftChange{CollectionIdentifier: collection}
}
