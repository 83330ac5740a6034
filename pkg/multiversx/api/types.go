package api

import "github.com/ethpandaops/tx-event-processor/pkg/multiversx"

const (
	OperationActionCreate = "create"
	OperationTypeNft      = "nft"
)

// TransactionDetail is the fully indexed view of a transaction.
type TransactionDetail struct {
	Hash       string           `json:"txHash"`
	Sender     string           `json:"sender"`
	Receiver   string           `json:"receiver"`
	Status     string           `json:"status"`
	Operations []Operation      `json:"operations"`
	Logs       *TransactionLogs `json:"logs"`
}

// Operation is a token movement or lifecycle action derived from a transaction.
type Operation struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	Type       string `json:"type"`
	ESDTType   string `json:"esdtType"`
	Identifier string `json:"identifier"`
	Collection string `json:"collection"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	Value      string `json:"value"`
}

// TransactionLogs groups the events emitted by a transaction.
type TransactionLogs struct {
	Address string                `json:"address"`
	Events  []multiversx.LogEvent `json:"events"`
}

// Events returns the log events, or nil if the detail carries no logs.
func (d *TransactionDetail) Events() []multiversx.LogEvent {
	if d == nil || d.Logs == nil {
		return nil
	}

	return d.Logs.Events
}

// CreatedNftIdentifier returns the identifier of the first NFT created by the transaction.
func (d *TransactionDetail) CreatedNftIdentifier() (string, bool) {
	if d == nil {
		return "", false
	}

	for _, op := range d.Operations {
		if op.Action == OperationActionCreate && op.Type == OperationTypeNft && op.Identifier != "" {
			return op.Identifier, true
		}
	}

	return "", false
}

// Nft is the indexed view of a single NFT, SFT or MetaESDT.
type Nft struct {
	Identifier string   `json:"identifier"`
	Collection string   `json:"collection"`
	Nonce      uint64   `json:"nonce"`
	Type       string   `json:"type"`
	Name       string   `json:"name"`
	Creator    string   `json:"creator"`
	Attributes string   `json:"attributes"`
	URIs       []string `json:"uris"`
	URL        string   `json:"url"`
	Timestamp  int64    `json:"timestamp"`
}
