package models

import (
	"encoding/json"
	"time"
)

const (
	UpdateRoute = "route_update"
	UpdateCash  = "cash_update"
)

// Update is one entry of the change feed. Timestamp is the feed sequence
// number, which doubles as the polling cursor.
type Update struct {
	Type      string          `json:"type"`
	Route     string          `json:"route"`
	Date      string          `json:"date"`
	UserID    string          `json:"userId"`
	UserName  string          `json:"userName,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

type RealTimeRequest struct {
	Route     string `json:"route"`
	Date      string `json:"date"`
	Timestamp int64  `json:"timestamp"`
}

type RealTimeData struct {
	Updates         []Update   `json:"updates"`
	LockedItems     []ItemLock `json:"lockedItems"`
	ServerTimestamp int64      `json:"serverTimestamp"`
}
