package multiversx

import "errors"

// Sentinel errors for gateway and API client operations.
var (
	// ErrBlockNotFound indicates a block was not found on the gateway.
	ErrBlockNotFound = errors.New("block not found")

	// ErrTransactionNotFound indicates a transaction is not indexed (yet).
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrNftNotFound indicates the NFT is not indexed (yet).
	ErrNftNotFound = errors.New("nft not found")

	// ErrMalformedResponse indicates an upstream returned an unexpected payload.
	ErrMalformedResponse = errors.New("malformed response")
)
