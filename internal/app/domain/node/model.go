// Package node defines server nodes and their time-versioned power, uptime
// and energy-rate history.
package node

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nodevault/custody-service/internal/app/timeline"
)

// ServerNode is a mining or validator machine owned by a user. DeletedAt
// implements soft deletion: a deleted node stays queryable through the
// deleted listing until reactivated.
type ServerNode struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"userId" db:"user_id"`
	Name      string     `json:"name" db:"name"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// Deleted reports whether the node is soft-deleted.
func (n ServerNode) Deleted() bool { return n.DeletedAt != nil }

// PowerEntry records the node's power draw in watt-hours over a period.
type PowerEntry struct {
	ID           int64   `json:"id" db:"id"`
	ServerNodeID int64   `json:"serverNodeId" db:"server_node_id"`
	Wh           float64 `json:"Wh" db:"wh"`
	timeline.Period
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func (e PowerEntry) EntryID() int64                { return e.ID }
func (e PowerEntry) OwnerID() int64                { return e.ServerNodeID }
func (e PowerEntry) EntryPeriod() timeline.Period  { return e.Period }

// UptimeEntry records the node's daily uptime in seconds over a period.
type UptimeEntry struct {
	ID                 int64 `json:"id" db:"id"`
	ServerNodeID       int64 `json:"serverNodeId" db:"server_node_id"`
	DailyUptimeSeconds int64 `json:"dailyUptimeSeconds" db:"daily_uptime_seconds"`
	timeline.Period
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func (e UptimeEntry) EntryID() int64               { return e.ID }
func (e UptimeEntry) OwnerID() int64               { return e.ServerNodeID }
func (e UptimeEntry) EntryPeriod() timeline.Period { return e.Period }

// EnergyRate records the electricity cost billed to the node over a period.
// CostPerKwh is decimal to keep monetary precision exact end to end.
type EnergyRate struct {
	ID           int64           `json:"id" db:"id"`
	ServerNodeID int64           `json:"serverNodeId" db:"server_node_id"`
	CostPerKwh   decimal.Decimal `json:"costPerKwh" db:"cost_per_kwh"`
	Currency     string          `json:"currency" db:"currency"`
	timeline.Period
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

func (e EnergyRate) EntryID() int64               { return e.ID }
func (e EnergyRate) OwnerID() int64               { return e.ServerNodeID }
func (e EnergyRate) EntryPeriod() timeline.Period { return e.Period }

// View is the read model for node endpoints: the node's own fields plus the
// values in effect right now, flattened. Nil current values are the normal
// state for a node with no applicable entry.
type View struct {
	ServerNode
	Wh                  *float64         `json:"Wh"`
	DailyUptimeSeconds  *int64           `json:"dailyUptimeSeconds"`
	CurrentPowerPeriod  *timeline.Period `json:"currentPowerPeriod"`
	CurrentUptimePeriod *timeline.Period `json:"currentUptimePeriod"`
	EnergyRates         []EnergyRate     `json:"energyRates"`
}
