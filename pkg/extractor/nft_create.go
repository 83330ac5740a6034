package extractor

import (
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

const FunctionNftCreate = "ESDTNFTCreate"

// NftCreateExtractor detects NFT mints.
//
// Direct mints are ESDTNFTCreate built-in calls sent by the creator to
// itself. Mints performed inside a smart contract are only visible in the
// execution logs, which is why the detail argument is consulted.
type NftCreateExtractor struct{}

func (e *NftCreateExtractor) Kind() Kind { return KindNftCreate }

func (e *NftCreateExtractor) Extract(tx *multiversx.ShardTransaction, detail *api.TransactionDetail) Result {
	if tx.IsSelfCall() && tx.FunctionName() == FunctionNftCreate {
		if collection := firstArg(tx); collection != "" {
			return &NftCreate{Collection: collection}
		}
	}

	for _, event := range detail.Events() {
		if event.Identifier != FunctionNftCreate || len(event.Topics) == 0 {
			continue
		}

		if collection := multiversx.Base64ToString(event.Topics[0]); collection != "" {
			return &NftCreate{Collection: collection}
		}
	}

	return nil
}

// CanDetectFromLogs reports whether the transaction is a smart contract call
// that may mint NFTs internally, so its logs are worth fetching.
func (e *NftCreateExtractor) CanDetectFromLogs(tx *multiversx.ShardTransaction) bool {
	if tx.IsSelfCall() || tx.FunctionName() == "" {
		return false
	}

	return multiversx.IsSmartContract(tx.Receiver) && tx.Receiver != multiversx.ESDTSystemContract
}
