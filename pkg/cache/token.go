package cache

import (
	"github.com/ethpandaops/tx-event-processor/pkg/multiversx"
)

// tokenPropertyFunctions are ESDT system contract endpoints that change the
// cached properties of an existing token. The value marks role changes.
var tokenPropertyFunctions = map[string]bool{
	"controlChanges":           false,
	"pause":                    false,
	"unPause":                  false,
	"freeze":                   false,
	"unFreeze":                 false,
	"wipe":                     false,
	"freezeSingleNFT":          false,
	"unFreezeSingleNFT":        false,
	"wipeSingleNFT":            false,
	"changeSFTToMetaESDT":      false,
	"transferOwnership":        false,
	"stopNFTCreate":            false,
	"changeToMultiShardCreate": false,
	"changeToDynamic":          false,
	"setSpecialRole":           true,
	"unSetSpecialRole":         true,
	"transferNFTCreateRole":    true,
	"setBurnRoleGlobally":      true,
	"unsetBurnRoleGlobally":    true,
}

// TokenInvalidator finds tokens whose cached properties a transaction made stale.
type TokenInvalidator struct{}

// TryInvalidateTokenProperties returns the keys to invalidate for tx, if any.
func (TokenInvalidator) TryInvalidateTokenProperties(tx *multiversx.ShardTransaction) []string {
	if tx.Receiver != multiversx.ESDTSystemContract {
		return nil
	}

	roles, ok := tokenPropertyFunctions[tx.FunctionName()]
	if !ok {
		return nil
	}

	args := tx.FunctionArgs()
	if len(args) == 0 {
		return nil
	}

	identifier := multiversx.HexToString(args[0])
	if identifier == "" {
		return nil
	}

	keys := []string{EsdtProperties(identifier)}
	if roles {
		keys = append(keys, EsdtRoles(identifier))
	}

	return keys
}
