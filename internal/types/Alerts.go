/*

This file contains the alert events carried on the alert bus.

Alert is a closed set: every kind implements Accept, and every consumer implements
AlertVisitor, so adding a kind fails to compile until each consumer handles it.

*/

package types

import (
	"encoding/json"
	"time"
)

type AlertKind string

const (
	AlertApyDrop           AlertKind = "apy_drop"
	AlertRiskIncrease      AlertKind = "risk_increase"
	AlertRebalanceNeeded   AlertKind = "rebalance_needed"
	AlertThresholdBreached AlertKind = "threshold_breached"
	AlertSignificantChange AlertKind = "significant_change"
)

type Alert interface {
	Kind() AlertKind
	Accept(v AlertVisitor)
	isAlert()
}

// AlertVisitor must handle every alert kind.
type AlertVisitor interface {
	VisitApyDrop(ApyDrop)
	VisitRiskIncrease(RiskIncrease)
	VisitRebalanceNeeded(RebalanceNeeded)
	VisitThresholdBreached(ThresholdBreached)
	VisitSignificantChange(SignificantChange)
}

type ApyDrop struct {
	PoolID string  `json:"pool_id"`
	OldAPY float64 `json:"old_apy"`
	NewAPY float64 `json:"new_apy"`
}

type RiskIncrease struct {
	PoolID     string  `json:"pool_id"`
	RiskFactor float64 `json:"risk_factor"`
}

type RebalanceNeeded struct {
	Reason string `json:"reason"`
	Trades int    `json:"trades"`
}

type ThresholdBreached struct {
	Current   float64 `json:"current"`
	Threshold float64 `json:"threshold"`
	Reason    string  `json:"reason"`
}

type SignificantChange struct {
	Old       float64 `json:"old"`
	New       float64 `json:"new"`
	ChangePct float64 `json:"change_pct"`
}

func (ApyDrop) Kind() AlertKind           { return AlertApyDrop }
func (RiskIncrease) Kind() AlertKind      { return AlertRiskIncrease }
func (RebalanceNeeded) Kind() AlertKind   { return AlertRebalanceNeeded }
func (ThresholdBreached) Kind() AlertKind { return AlertThresholdBreached }
func (SignificantChange) Kind() AlertKind { return AlertSignificantChange }

func (a ApyDrop) Accept(v AlertVisitor)           { v.VisitApyDrop(a) }
func (a RiskIncrease) Accept(v AlertVisitor)      { v.VisitRiskIncrease(a) }
func (a RebalanceNeeded) Accept(v AlertVisitor)   { v.VisitRebalanceNeeded(a) }
func (a ThresholdBreached) Accept(v AlertVisitor) { v.VisitThresholdBreached(a) }
func (a SignificantChange) Accept(v AlertVisitor) { v.VisitSignificantChange(a) }

func (ApyDrop) isAlert()           {}
func (RiskIncrease) isAlert()      {}
func (RebalanceNeeded) isAlert()   {}
func (ThresholdBreached) isAlert() {}
func (SignificantChange) isAlert() {}

// AlertEvent is the envelope delivered to bus subscribers.
type AlertEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Alert     Alert     `json:"-"`
}

func (e AlertEvent) MarshalJSON() ([]byte, error) {
	var kind AlertKind
	if e.Alert != nil {
		kind = e.Alert.Kind()
	}
	return json.Marshal(struct {
		ID        string    `json:"id"`
		Timestamp time.Time `json:"timestamp"`
		Kind      AlertKind `json:"kind"`
		Payload   Alert     `json:"payload"`
	}{e.ID, e.Timestamp, kind, e.Alert})
}
