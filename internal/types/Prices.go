package types

import "time"

// PriceData is one observation of the reference asset's USD price.
type PriceData struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}
