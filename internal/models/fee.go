package models

import (
	"time"

	"github.com/google/uuid"
)

type FeeStatus string

const (
	FeePending FeeStatus = "pending"
	FeePaid    FeeStatus = "paid"
	FeeOverdue FeeStatus = "overdue"
)

func (s FeeStatus) Valid() bool {
	switch s {
	case FeePending, FeePaid, FeeOverdue:
		return true
	}
	return false
}

const (
	DefaultPaymentMethod = "unspecified"
	DefaultFeeLevel      = "unassigned"
)

// FeeRecord is one billing period for one student. Level, PaymentMethod,
// PaymentDate and Notes are optional columns; read them through Details.
type FeeRecord struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Amount        float64   `json:"amount" gorm:"type:numeric(10,2);not null"`
	Date          Date      `json:"date" gorm:"not null;index"`
	Status        FeeStatus `json:"status" gorm:"type:varchar(16);not null;default:pending;index"`
	Level         *string   `json:"level,omitempty"`
	PaymentMethod *string   `json:"payment_method,omitempty"`
	PaymentDate   *Date     `json:"payment_date,omitempty"`
	Notes         *string   `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FeeDetails is the resolved view of the optional fee columns.
type FeeDetails struct {
	Level         string `json:"level"`
	PaymentMethod string `json:"payment_method"`
	PaymentDate   *Date  `json:"payment_date"`
	Notes         string `json:"notes"`
}

// Details fills absent optional columns with defaults. fallbackLevel is
// used when the record carries no level of its own, typically the
// student's current level.
func (f FeeRecord) Details(fallbackLevel Level) FeeDetails {
	d := FeeDetails{
		Level:         DefaultFeeLevel,
		PaymentMethod: DefaultPaymentMethod,
	}
	switch {
	case f.Level != nil && *f.Level != "":
		d.Level = *f.Level
	case fallbackLevel != "":
		d.Level = string(fallbackLevel)
	}
	if f.PaymentMethod != nil && *f.PaymentMethod != "" {
		d.PaymentMethod = *f.PaymentMethod
	}
	if f.Status == FeePaid && f.PaymentDate != nil {
		pd := *f.PaymentDate
		d.PaymentDate = &pd
	}
	if f.Notes != nil {
		d.Notes = *f.Notes
	}
	return d
}

// FeeUpdate is an admin status change. Paying a fee without a payment
// date records today.
type FeeUpdate struct {
	Status        FeeStatus
	PaymentMethod *string
	PaymentDate   *Date
	Notes         *string
}

func (f *FeeRecord) Apply(u FeeUpdate, today Date) {
	f.Status = u.Status
	if u.PaymentMethod != nil {
		pm := *u.PaymentMethod
		f.PaymentMethod = &pm
	}
	if u.Notes != nil {
		n := *u.Notes
		f.Notes = &n
	}
	switch {
	case u.Status != FeePaid:
		f.PaymentDate = nil
	case u.PaymentDate != nil:
		pd := *u.PaymentDate
		f.PaymentDate = &pd
	case f.PaymentDate == nil:
		f.PaymentDate = &today
	}
}
