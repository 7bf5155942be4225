package models

import "time"

type InventoryItem struct {
	Category   string  `json:"category"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Physical   float64 `json:"physical"`
	PhysUnit   string  `json:"physUnit"`
	Transfer   float64 `json:"transfer"`
	TransUnit  string  `json:"transUnit"`
	System     float64 `json:"system"`
	SysUnit    string  `json:"sysUnit"`
	Difference float64 `json:"difference"`
	Reimburse  float64 `json:"reimburse"`
	ReimbUnit  string  `json:"reimbUnit"`
}

type SaveInventoryRequest struct {
	Route     string          `json:"route"`
	Date      string          `json:"date"`
	Items     []InventoryItem `json:"items"`
	Timestamp int64           `json:"timestamp"`
	UserID    string          `json:"userId"`
	UserName  string          `json:"userName"`
}

type InventoryRecord struct {
	Route     string          `json:"route"`
	Date      string          `json:"date"`
	Items     []InventoryItem `json:"items"`
	UpdatedBy string          `json:"updatedBy,omitempty"`
	UpdatedAt *time.Time      `json:"updatedAt,omitempty"`
}

type RecordQuery struct {
	Route string `json:"route"`
	Date  string `json:"date"`
}

type SaveResult struct {
	Saved           bool  `json:"saved"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}
