package model

// TokenCreatedRecord is the observable record emitted for each successful
// deployment.
type TokenCreatedRecord struct {
	Token          string `json:"token"`
	PositionID     uint64 `json:"position_id"`
	Deployer       string `json:"deployer"`
	RequesterID    uint64 `json:"requester_id"`
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Supply         string `json:"supply"`
	Locker         string `json:"locker"`
	ProvenanceHash string `json:"provenance_hash"`
}

// RewardClaimRecord is the observable record emitted for each successful fee
// collection. Amounts are decimal strings of the underlying integer values.
type RewardClaimRecord struct {
	PositionID       uint64 `json:"position_id"`
	Recipient        string `json:"recipient"`
	Asset0           string `json:"asset0"`
	Asset1           string `json:"asset1"`
	RecipientAmount0 string `json:"recipient_amount0"`
	RecipientAmount1 string `json:"recipient_amount1"`
	TotalAmount0     string `json:"total_amount0"`
	TotalAmount1     string `json:"total_amount1"`
}
