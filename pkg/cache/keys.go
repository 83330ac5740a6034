package cache

// Cache keys shared with the API fleet. They are stored under the
// configured prefix in the shared cache and unprefixed in local caches.

func TxCount(address string) string {
	return "txCount:" + address
}

func EsdtProperties(identifier string) string {
	return "esdt:" + identifier
}

func EsdtRoles(identifier string) string {
	return "esdtRoles:" + identifier
}

// Owner is the cached owner of a validator node, keyed by BLS key.
func Owner(blsKey string) string {
	return "owner:" + blsKey
}

// OwnerIndex is the set of BLS keys whose cached owner is address.
func OwnerIndex(address string) string {
	return "ownerIndex:" + address
}

// Nft is the processor's own cached copy of an indexed NFT. Updates of the
// NFT broadcast this key so sibling processes drop their local copies.
func Nft(identifier string) string {
	return "txProcessor:nft:" + identifier
}
