package models

import (
	id "citadel/pkg/domain"
)

// Transition is one immutable entry of an asset's ownership audit trail.
// Sequence numbers start at 0 and increase by one per asset with no gaps.
type Transition struct {
	AssetID  id.AssetID   `json:"asset_id"`
	Sequence uint64       `json:"sequence"`
	From     id.Principal `json:"from"`
	To       id.Principal `json:"to"`
	AtHeight id.Height    `json:"at_height"`
	Reason   string       `json:"reason"`
}

// TransitionInput carries everything an append needs except the sequence number,
// which only the log assigns.
type TransitionInput struct {
	AssetID  id.AssetID
	From     id.Principal
	To       id.Principal
	AtHeight id.Height
	Reason   string
}
