package models

import "time"

type ItemLock struct {
	ItemKey    string    `json:"itemKey"`
	Route      string    `json:"route"`
	ItemCode   string    `json:"itemCode"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// ItemKey scopes an item code to a route.
func ItemKey(route, itemCode string) string {
	return route + "_" + itemCode
}

// SalesItemCode namespaces a product code for the sales module so it does
// not collide with the inventory row lock of the same product.
func SalesItemCode(code string) string {
	return "sales_" + code
}

type LockRequest struct {
	Route    string `json:"route"`
	ItemCode string `json:"itemCode"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type LockHolder struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type LockResponse struct {
	Success   bool        `json:"success"`
	HeldBy    *LockHolder `json:"heldBy,omitempty"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
}
