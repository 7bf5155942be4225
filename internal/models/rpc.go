package models

import "encoding/json"

const (
	ActionHeartbeat       = "heartbeat"
	ActionGetRealTimeData = "getRealTimeData"
	ActionGetActiveUsers  = "getActiveUsers"
	ActionLockItem        = "lockItem"
	ActionUnlockItem      = "unlockItem"
	ActionSaveInventory   = "saveInventoryData"
	ActionSaveCash        = "saveCashReconciliation"
	ActionGetInventory    = "getInventoryData"
	ActionGetCash         = "getCashReconciliationData"
	ActionCalculateSales  = "calculateSalesFromInventory"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the response body of every action.
type Envelope struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data"`
	Message string      `json:"message,omitempty"`
}

// RawEnvelope is the client-side view of Envelope with data left undecoded.
type RawEnvelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// ActionHeader is decoded first to route the request body.
type ActionHeader struct {
	Action string `json:"action"`
}

// ReadOnlyAction reports whether the action never mutates server state.
func ReadOnlyAction(action string) bool {
	switch action {
	case ActionGetInventory, ActionGetCash, ActionGetActiveUsers, ActionCalculateSales:
		return true
	}
	return false
}
