package extractor

import (
	"strings"

	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx/api"
)

const FunctionNftUpdateAttributes = "ESDTNFTUpdateAttributes"

// NftUpdateAttributesExtractor detects ESDTNFTUpdateAttributes built-in calls.
// The NFT identifier is the collection followed by the hex nonce.
type NftUpdateAttributesExtractor struct{}

func (e *NftUpdateAttributesExtractor) Kind() Kind { return KindNftUpdateAttributes }

func (e *NftUpdateAttributesExtractor) Extract(tx *multiversx.ShardTransaction, _ *api.TransactionDetail) Result {
	if !tx.IsSelfCall() || tx.FunctionName() != FunctionNftUpdateAttributes {
		return nil
	}

	args := tx.FunctionArgs()
	if len(args) < 2 {
		return nil
	}

	collection := multiversx.HexToString(args[0])
	nonce := strings.ToLower(args[1])

	if collection == "" || nonce == "" {
		return nil
	}

	if len(nonce)%2 == 1 {
		nonce = "0" + nonce
	}

	return &NftUpdateAttributes{Identifier: collection + "-" + nonce}
}
