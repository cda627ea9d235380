package dto

import (
	"time"

	"loan-manager/internal/domain/loan"
)

type CreateLoanRequest struct {
	CustomerID        string  `json:"customerId" validate:"required"`
	Principal         float64 `json:"principal" validate:"gt=0"`
	InterestRate      float64 `json:"interestRate" validate:"gt=0"`
	StartDate         string  `json:"startDate" validate:"required"`
	EndDate           string  `json:"endDate" validate:"required"`
	InterestFrequency string  `json:"interestFrequency" validate:"required,oneof=monthly quarterly half-yearly yearly"`
	Remarks           string  `json:"remarks,omitempty"`
}

func (r *CreateLoanRequest) Validate() error {
	return validateStruct(r)
}

func (r *CreateLoanRequest) ToInput() (loan.CreateLoanInput, error) {
	start, err := ParseDate("startDate", r.StartDate)
	if err != nil {
		return loan.CreateLoanInput{}, err
	}
	end, err := ParseDate("endDate", r.EndDate)
	if err != nil {
		return loan.CreateLoanInput{}, err
	}
	return loan.CreateLoanInput{
		CustomerID:        r.CustomerID,
		Principal:         r.Principal,
		InterestRate:      r.InterestRate,
		StartDate:         start,
		EndDate:           end,
		InterestFrequency: loan.Frequency(r.InterestFrequency),
		Remarks:           r.Remarks,
	}, nil
}

// UpdateLoanRequest carries a partial update. Omitted fields are left unchanged.
type UpdateLoanRequest struct {
	CustomerID        *string  `json:"customerId,omitempty" validate:"omitempty,min=1"`
	Principal         *float64 `json:"principal,omitempty" validate:"omitempty,gt=0"`
	InterestRate      *float64 `json:"interestRate,omitempty" validate:"omitempty,gt=0"`
	StartDate         *string  `json:"startDate,omitempty"`
	EndDate           *string  `json:"endDate,omitempty"`
	InterestFrequency *string  `json:"interestFrequency,omitempty" validate:"omitempty,oneof=monthly quarterly half-yearly yearly"`
	Remarks           *string  `json:"remarks,omitempty"`
	Version           *int64   `json:"version,omitempty" validate:"omitempty,gte=1"`
}

func (r *UpdateLoanRequest) Validate() error {
	return validateStruct(r)
}

func (r *UpdateLoanRequest) ToChanges() (loan.LoanChanges, error) {
	start, err := parseOptionalDate("startDate", r.StartDate)
	if err != nil {
		return loan.LoanChanges{}, err
	}
	end, err := parseOptionalDate("endDate", r.EndDate)
	if err != nil {
		return loan.LoanChanges{}, err
	}
	changes := loan.LoanChanges{
		CustomerID:   r.CustomerID,
		Principal:    r.Principal,
		InterestRate: r.InterestRate,
		StartDate:    start,
		EndDate:      end,
		Remarks:      r.Remarks,
		Version:      r.Version,
	}
	if r.InterestFrequency != nil {
		f := loan.Frequency(*r.InterestFrequency)
		changes.InterestFrequency = &f
	}
	if changes.Remarks != nil && *changes.Remarks == "" {
		changes.Remarks = nil
	}
	return changes, nil
}

type MarkInterestPaidRequest struct {
	PaymentID    string   `json:"paymentId" validate:"required"`
	PaidOn       string   `json:"paidOn" validate:"required"`
	Remarks      *string  `json:"remarks,omitempty"`
	ManualAmount *float64 `json:"manualAmount,omitempty"`
}

func (r *MarkInterestPaidRequest) Validate() error {
	return validateStruct(r)
}

func (r *MarkInterestPaidRequest) ToInput() (loan.MarkInterestPaidInput, error) {
	paidOn, err := ParseDate("paidOn", r.PaidOn)
	if err != nil {
		return loan.MarkInterestPaidInput{}, err
	}
	return loan.MarkInterestPaidInput{
		PaymentID:    r.PaymentID,
		PaidOn:       paidOn,
		Remarks:      r.Remarks,
		ManualAmount: r.ManualAmount,
	}, nil
}

type InterestPaymentResponse struct {
	ID             string   `json:"id"`
	DueDate        string   `json:"dueDate"`
	Amount         float64  `json:"amount"`
	Status         string   `json:"status"`
	PaidOn         *string  `json:"paidOn,omitempty"`
	PeriodStart    string   `json:"periodStart"`
	PeriodEnd      string   `json:"periodEnd"`
	Remarks        *string  `json:"remarks,omitempty"`
	AmountPaid     *float64 `json:"amountPaid,omitempty"`
	IsManualAmount bool     `json:"isManualAmount"`
}

type PaymentAmendmentResponse struct {
	PaymentID      string    `json:"paymentId"`
	PaidOn         string    `json:"paidOn"`
	AmountPaid     float64   `json:"amountPaid"`
	IsManualAmount bool      `json:"isManualAmount"`
	Remarks        *string   `json:"remarks,omitempty"`
	RecordedAt     time.Time `json:"recordedAt"`
}

type LoanResponse struct {
	ID                     string                     `json:"id"`
	CustomerID             string                     `json:"customerId"`
	Principal              float64                    `json:"principal"`
	InterestRate           float64                    `json:"interestRate"`
	StartDate              string                     `json:"startDate"`
	EndDate                string                     `json:"endDate"`
	InterestFrequency      string                     `json:"interestFrequency"`
	InterestPayments       []InterestPaymentResponse  `json:"interestPayments"`
	Status                 string                     `json:"status"`
	PrincipalPaid          bool                       `json:"principalPaid"`
	Remarks                string                     `json:"remarks,omitempty"`
	PaymentHistory         []PaymentAmendmentResponse `json:"paymentHistory,omitempty"`
	TotalInterestScheduled float64                    `json:"totalInterestScheduled"`
	TotalInterestPaid      float64                    `json:"totalInterestPaid"`
	DeletedAt              *time.Time                 `json:"deletedAt,omitempty"`
	DaysLeftToRestore      *int                       `json:"daysLeftToRestore,omitempty"`
	Version                int64                      `json:"version"`
	CreatedAt              time.Time                  `json:"createdAt"`
	UpdatedAt              time.Time                  `json:"updatedAt"`
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// NewLoanResponse renders a loan as of now. daysLeft is reported only for deleted loans.
func NewLoanResponse(l *loan.Loan, now time.Time, daysLeft int) LoanResponse {
	resp := LoanResponse{
		ID:                     l.ID,
		CustomerID:             l.CustomerID,
		Principal:              l.Principal,
		InterestRate:           l.InterestRate,
		StartDate:              formatDate(l.StartDate),
		EndDate:                formatDate(l.EndDate),
		InterestFrequency:      string(l.InterestFrequency),
		InterestPayments:       make([]InterestPaymentResponse, len(l.InterestPayments)),
		Status:                 string(l.Status),
		PrincipalPaid:          l.PrincipalPaid,
		Remarks:                l.Remarks,
		TotalInterestScheduled: l.TotalInterestScheduled(),
		TotalInterestPaid:      l.TotalInterestPaid(),
		DeletedAt:              l.DeletedAt,
		Version:                l.Version,
		CreatedAt:              l.CreatedAt,
		UpdatedAt:              l.UpdatedAt,
	}

	for i, p := range l.InterestPayments {
		resp.InterestPayments[i] = newInterestPaymentResponse(p, now)
	}
	for _, a := range l.PaymentHistory {
		resp.PaymentHistory = append(resp.PaymentHistory, PaymentAmendmentResponse{
			PaymentID:      a.PaymentID,
			PaidOn:         formatDate(a.PaidOn),
			AmountPaid:     a.AmountPaid,
			IsManualAmount: a.IsManualAmount,
			Remarks:        a.Remarks,
			RecordedAt:     a.RecordedAt,
		})
	}
	if l.IsDeleted() {
		resp.DaysLeftToRestore = &daysLeft
	}
	return resp
}

func newInterestPaymentResponse(p loan.InterestPayment, now time.Time) InterestPaymentResponse {
	out := InterestPaymentResponse{
		ID:             p.ID,
		DueDate:        formatDate(p.DueDate),
		Amount:         p.Amount,
		Status:         string(p.EffectiveStatus(now)),
		PeriodStart:    formatDate(p.PeriodStart),
		PeriodEnd:      formatDate(p.PeriodEnd),
		Remarks:        p.Remarks,
		AmountPaid:     p.AmountPaid,
		IsManualAmount: p.IsManualAmount,
	}
	if p.PaidOn != nil {
		s := formatDate(*p.PaidOn)
		out.PaidOn = &s
	}
	return out
}

type UpcomingPaymentResponse struct {
	LoanID            string  `json:"loanId"`
	PaymentID         string  `json:"paymentId"`
	CustomerID        string  `json:"customerId"`
	CustomerName      string  `json:"customerName"`
	CustomerEmail     string  `json:"customerEmail"`
	CustomerMobile    string  `json:"customerMobile"`
	DueDate           string  `json:"dueDate"`
	Amount            float64 `json:"amount"`
	InterestFrequency string  `json:"interestFrequency"`
	Principal         float64 `json:"principal"`
}

func NewUpcomingPaymentResponses(items []loan.UpcomingPayment) []UpcomingPaymentResponse {
	out := make([]UpcomingPaymentResponse, 0, len(items))
	for _, p := range items {
		out = append(out, UpcomingPaymentResponse{
			LoanID:            p.LoanID,
			PaymentID:         p.PaymentID,
			CustomerID:        p.CustomerID,
			CustomerName:      p.CustomerName,
			CustomerEmail:     p.CustomerEmail,
			CustomerMobile:    p.CustomerMobile,
			DueDate:           formatDate(p.DueDate),
			Amount:            p.Amount,
			InterestFrequency: string(p.InterestFrequency),
			Principal:         p.Principal,
		})
	}
	return out
}
