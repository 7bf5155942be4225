package models

import "time"

type SalesItem struct {
	Category string  `json:"category"`
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Total    float64 `json:"total"`
}

type CashNotes struct {
	Total float64 `json:"total"`
	// Denominations maps a note value ("500", "100", ...) to its count.
	Denominations map[string]int `json:"denominations"`
}

type CashRecord struct {
	Route           string      `json:"route"`
	Date            string      `json:"date"`
	SalesItems      []SalesItem `json:"salesItems"`
	TotalSales      float64     `json:"totalSales"`
	CreditSales     float64     `json:"creditSales"`
	CreditRepayment float64     `json:"creditRepayment"`
	BankPOS         float64     `json:"bankPOS"`
	BankTransfer    float64     `json:"bankTransfer"`
	Cheque          float64     `json:"cheque"`
	ExpectedCash    float64     `json:"expectedCash"`
	CashNotes       CashNotes   `json:"cashNotes"`
	Coins           float64     `json:"coins"`
	ActualCash      float64     `json:"actualCash"`
	Difference      float64     `json:"difference"`
	Timestamp       int64       `json:"timestamp"`
	UserID          string      `json:"userId,omitempty"`
	UserName        string      `json:"userName,omitempty"`
	UpdatedAt       *time.Time  `json:"updatedAt,omitempty"`
}

type SalesRequest struct {
	Route        string `json:"route"`
	CurrentDate  string `json:"currentDate"`
	PreviousDate string `json:"previousDate"`
}

type SalesQuantity struct {
	Code     string  `json:"code"`
	Category string  `json:"category"`
	Name     string  `json:"name"`
	SalesQty float64 `json:"salesQty"`
}
