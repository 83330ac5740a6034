package multiversx

import "strings"

const (
	// ESDTSystemContract is the system smart contract managing ESDT collections.
	ESDTSystemContract = "erd1qqqqqqqqqqqqqqqpqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqzllls8a5w6u"

	// smartContractPrefix is shared by all bech32 smart contract addresses,
	// whose public keys start with eight zero bytes.
	smartContractPrefix = "erd1qqqqqqqqqqqqq"
)

// IsSmartContract reports whether the bech32 address belongs to a smart contract.
func IsSmartContract(address string) bool {
	return strings.HasPrefix(address, smartContractPrefix)
}
