package extractor

// Kind names a detected event type.
type Kind string

const (
	KindNftCreate           Kind = "nft_create"
	KindNftUpdateAttributes Kind = "nft_update_attributes"
	KindSftChange           Kind = "sft_change"
	KindTransferOwnership   Kind = "transfer_ownership"
)

// Result is a detected event. The concrete types below are the only implementations.
type Result interface {
	Kind() Kind
	// Subject is the collection or token identifier the event is about.
	Subject() string
}

// NftCreate is emitted when an NFT is minted into Collection.
type NftCreate struct {
	Collection string
}

func (r *NftCreate) Kind() Kind      { return KindNftCreate }
func (r *NftCreate) Subject() string { return r.Collection }

// NftUpdateAttributes is emitted when the attributes of a single NFT change.
type NftUpdateAttributes struct {
	Identifier string
}

func (r *NftUpdateAttributes) Kind() Kind      { return KindNftUpdateAttributes }
func (r *NftUpdateAttributes) Subject() string { return r.Identifier }

// SftChange is emitted when a collection's type or properties change.
type SftChange struct {
	CollectionIdentifier string
}

func (r *SftChange) Kind() Kind      { return KindSftChange }
func (r *SftChange) Subject() string { return r.CollectionIdentifier }

// TransferOwnership is emitted when a collection changes owner.
type TransferOwnership struct {
	Identifier string
}

func (r *TransferOwnership) Kind() Kind      { return KindTransferOwnership }
func (r *TransferOwnership) Subject() string { return r.Identifier }
