package models

import "time"

type ActiveUser struct {
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	Route       string     `json:"route"`
	Module      string     `json:"module"`
	LastSeen    time.Time  `json:"lastSeen"`
	LockedItems []ItemLock `json:"lockedItems,omitempty"`
}

type HeartbeatRequest struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Route    string `json:"route"`
	Module   string `json:"module"`
}

type HeartbeatResponse struct {
	ActiveUsers int `json:"activeUsers"`
}

type ActiveUsersResponse struct {
	Users []ActiveUser `json:"users"`
	Count int          `json:"count"`
}
