// Package domain contains persistence models for subscriber accounts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Classification buckets a subscriber into a tariff class.
type Classification string

const (
	ClassificationPrivate    Classification = "PRIVATE"
	ClassificationCommercial Classification = "COMMERCIAL"
	ClassificationGovernment Classification = "GOVERNMENT"
	ClassificationBulk       Classification = "BULK"
)

// Valid reports whether c is a known classification.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationPrivate, ClassificationCommercial, ClassificationGovernment, ClassificationBulk:
		return true
	}
	return false
}

// Status represents subscriber account lifecycle states.
type Status string

const (
	StatusActive       Status = "ACTIVE"
	StatusDisconnected Status = "DISCONNECTED"
	StatusSuspended    Status = "SUSPENDED"
	StatusClosed       Status = "CLOSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDisconnected, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

// Subscriber is the central account holder record. It owns all bills, ledger
// entries, other charges and disconnection notices for its lifetime.
type Subscriber struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountNumber  string         `gorm:"type:text;not null;uniqueIndex" json:"account_number"`
	LastName       string         `gorm:"type:text;not null" json:"last_name"`
	FirstName      string         `gorm:"type:text;not null" json:"first_name"`
	MiddleName     string         `gorm:"type:text" json:"middle_name,omitempty"`
	Address        string         `gorm:"type:text" json:"address,omitempty"`
	Barangay       string         `gorm:"type:text" json:"barangay,omitempty"`
	ContactNumber  string         `gorm:"type:text" json:"contact_number,omitempty"`
	Email          string         `gorm:"type:text" json:"email,omitempty"`
	Classification Classification `gorm:"type:text;not null;index" json:"classification"`
	Status         Status         `gorm:"type:text;not null;default:'ACTIVE'" json:"status"`
	MeterNumber    string         `gorm:"type:text;not null;uniqueIndex" json:"meter_number"`
	MeterSize      string         `gorm:"type:text" json:"meter_size,omitempty"`
	ServiceAddress string         `gorm:"type:text" json:"service_address,omitempty"`
	ConnectionDate time.Time      `gorm:"not null" json:"connection_date"`
	MonthlyMinimum decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"monthly_minimum"`
	IsSenior       bool           `gorm:"not null;default:false" json:"is_senior"`
	CreatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscriber) TableName() string { return "subscribers" }

// FullName renders "Last, First Middle" for receipts and notices.
func (s Subscriber) FullName() string {
	name := s.LastName + ", " + s.FirstName
	if s.MiddleName != "" {
		name += " " + s.MiddleName
	}
	return name
}
