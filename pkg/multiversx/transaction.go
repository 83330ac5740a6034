package multiversx

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// MetachainShardID is the shard identifier the gateway uses for the metachain.
const MetachainShardID uint32 = 4294967295

// ShardTransaction is a transaction as observed in a shard block.
// It is produced by the gateway and never mutated afterwards.
type ShardTransaction struct {
	ShardID  uint32
	Nonce    uint64 // nonce of the block the transaction was included in
	Hash     string
	Sender   string
	Receiver string
	Data     string // base64 encoded payload
	Status   string
	Logs     []LogEvent
}

// LogEvent is a single event emitted while executing a transaction.
type LogEvent struct {
	Address    string   `json:"address"`
	Identifier string   `json:"identifier"`
	Topics     []string `json:"topics"` // base64 encoded
	Data       string   `json:"data"`
}

// DecodedData returns the payload decoded from base64. An undecodable or
// empty payload yields an empty string.
func (t *ShardTransaction) DecodedData() string {
	if t.Data == "" {
		return ""
	}

	decoded, err := base64.StdEncoding.DecodeString(t.Data)
	if err != nil {
		return ""
	}

	return string(decoded)
}

// FunctionName returns the called function for payloads in the
// "function@arg1@arg2" call format.
func (t *ShardTransaction) FunctionName() string {
	data := t.DecodedData()
	if data == "" {
		return ""
	}

	name, _, _ := strings.Cut(data, "@")

	return name
}

// FunctionArgs returns the hex encoded call arguments following the function name.
func (t *ShardTransaction) FunctionArgs() []string {
	data := t.DecodedData()
	if data == "" {
		return nil
	}

	parts := strings.Split(data, "@")
	if len(parts) < 2 {
		return nil
	}

	return parts[1:]
}

// IsSelfCall reports whether the transaction is sent from an account to itself,
// which is how built-in ESDT functions are invoked.
func (t *ShardTransaction) IsSelfCall() bool {
	return t.Sender != "" && t.Sender == t.Receiver
}

// HexToString decodes a hex encoded call argument. Invalid input yields "".
func HexToString(value string) string {
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return ""
	}

	return string(decoded)
}

// Base64ToString decodes a base64 encoded log topic. Invalid input yields "".
func Base64ToString(value string) string {
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return ""
	}

	return string(decoded)
}

// EncodeData builds a base64 payload from a function name and raw string
// arguments, hex encoding each argument.
func EncodeData(function string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, function)

	for _, arg := range args {
		parts = append(parts, hex.EncodeToString([]byte(arg)))
	}

	return base64.StdEncoding.EncodeToString([]byte(strings.Join(parts, "@")))
}
