package models

import "time"

const (
	ActivitySaved    = "saved"
	ActivityLocked   = "locked"
	ActivityUnlocked = "unlocked"
)

// Activity is pushed to live dashboards over the websocket feed.
type Activity struct {
	Type     string    `json:"type"`
	Module   string    `json:"module,omitempty"`
	Route    string    `json:"route"`
	Date     string    `json:"date,omitempty"`
	ItemCode string    `json:"itemCode,omitempty"`
	UserID   string    `json:"userId,omitempty"`
	UserName string    `json:"userName,omitempty"`
	At       time.Time `json:"at"`
}
