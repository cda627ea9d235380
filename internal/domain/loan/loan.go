package loan

import (
	"time"
)

type Money = float64

type LoanStatus string

const (
	StatusActive  LoanStatus = "active"
	StatusClosed  LoanStatus = "closed"
	StatusDeleted LoanStatus = "deleted"
)

func (s LoanStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusClosed, StatusDeleted:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	// PaymentStatusOverdue is never stored. It is derived from a pending due date.
	PaymentStatusOverdue PaymentStatus = "overdue"
)

type Loan struct {
	ID                string             `json:"id" bson:"_id"`
	UserID            string             `json:"userId" bson:"userId"`
	CustomerID        string             `json:"customerId" bson:"customerId"`
	Principal         Money              `json:"principal" bson:"principal"`
	InterestRate      float64            `json:"interestRate" bson:"interestRate"`
	StartDate         time.Time          `json:"startDate" bson:"startDate"`
	EndDate           time.Time          `json:"endDate" bson:"endDate"`
	InterestFrequency Frequency          `json:"interestFrequency" bson:"interestFrequency"`
	InterestPayments  []InterestPayment  `json:"interestPayments" bson:"interestPayments"`
	Status            LoanStatus         `json:"status" bson:"status"`
	PrincipalPaid     bool               `json:"principalPaid" bson:"principalPaid"`
	Remarks           string             `json:"remarks,omitempty" bson:"remarks,omitempty"`
	PaymentHistory    []PaymentAmendment `json:"paymentHistory,omitempty" bson:"paymentHistory,omitempty"`
	DeletedAt         *time.Time         `json:"deletedAt,omitempty" bson:"deletedAt,omitempty"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updatedAt"`
	Version           int64              `json:"version" bson:"version"`
}

type InterestPayment struct {
	ID             string        `json:"id" bson:"id"`
	DueDate        time.Time     `json:"dueDate" bson:"dueDate"`
	Amount         Money         `json:"amount" bson:"amount"`
	Status         PaymentStatus `json:"status" bson:"status"`
	PaidOn         *time.Time    `json:"paidOn,omitempty" bson:"paidOn,omitempty"`
	PeriodStart    time.Time     `json:"periodStart" bson:"periodStart"`
	PeriodEnd      time.Time     `json:"periodEnd" bson:"periodEnd"`
	Remarks        *string       `json:"remarks,omitempty" bson:"remarks,omitempty"`
	AmountPaid     *Money        `json:"amountPaid,omitempty" bson:"amountPaid,omitempty"`
	IsManualAmount bool          `json:"isManualAmount,omitempty" bson:"isManualAmount,omitempty"`
}

// PaymentAmendment is one entry of the append-only record of mark-paid calls.
type PaymentAmendment struct {
	PaymentID      string    `json:"paymentId" bson:"paymentId"`
	PaidOn         time.Time `json:"paidOn" bson:"paidOn"`
	AmountPaid     Money     `json:"amountPaid" bson:"amountPaid"`
	IsManualAmount bool      `json:"isManualAmount" bson:"isManualAmount"`
	Remarks        *string   `json:"remarks,omitempty" bson:"remarks,omitempty"`
	RecordedAt     time.Time `json:"recordedAt" bson:"recordedAt"`
	RecordedBy     string    `json:"recordedBy" bson:"recordedBy"`
}

// EffectiveStatus reports overdue for pending installments whose due date is before today.
func (p InterestPayment) EffectiveStatus(now time.Time) PaymentStatus {
	if p.Status == PaymentStatusPending && p.DueDate.Before(DateOnly(now)) {
		return PaymentStatusOverdue
	}
	return p.Status
}

func (l *Loan) IsDeleted() bool {
	return l.Status == StatusDeleted
}

func (l *Loan) FindPayment(paymentID string) (int, bool) {
	for i := range l.InterestPayments {
		if l.InterestPayments[i].ID == paymentID {
			return i, true
		}
	}
	return -1, false
}

// DaysLeftToRestore counts whole days remaining before a deleted loan becomes eligible for purge.
func (l *Loan) DaysLeftToRestore(now time.Time, retentionDays int) int {
	if l.DeletedAt == nil {
		return 0
	}
	elapsed := int(now.Sub(*l.DeletedAt) / (24 * time.Hour))
	left := retentionDays - elapsed
	if left < 0 {
		return 0
	}
	return left
}

func (l *Loan) TotalInterestScheduled() Money {
	var total Money
	for _, p := range l.InterestPayments {
		total += p.Amount
	}
	return round2(total)
}

func (l *Loan) TotalInterestPaid() Money {
	var total Money
	for _, p := range l.InterestPayments {
		if p.Status == PaymentStatusPaid && p.AmountPaid != nil {
			total += *p.AmountPaid
		}
	}
	return round2(total)
}

// DateOnly drops the clock part and pins the date to UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
