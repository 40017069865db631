package domain

import (
	"encoding/json"
	"time"
)

// Signal bus channels and streams.
const (
	ChannelPredictions = "predictions"
	ChannelSettlements = "settlements"
	StreamPredictions  = "stream:predictions"
)

// PredictionSnapshot is the event payload broadcast after any committed
// state change to a prediction. Consumers should treat it as a full
// replacement for whatever they previously held for that prediction.
type PredictionSnapshot struct {
	Type       string           `json:"type"` // "stake_placed" or "resolved"
	Prediction Prediction       `json:"prediction"`
	Totals     *SettlementTotals `json:"totals,omitempty"`
	At         time.Time        `json:"at"`
}

// Encode marshals the snapshot for the wire. Marshaling a snapshot cannot
// realistically fail, so encode errors collapse to an empty payload that
// subscribers ignore.
func (s PredictionSnapshot) Encode() []byte {
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	return b
}
