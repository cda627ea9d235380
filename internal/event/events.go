package event

import "time"

const (
	RoutingKeyLoanCreated      = "loan.created"
	RoutingKeyLoanUpdated      = "loan.updated"
	RoutingKeyLoanRescheduled  = "loan.rescheduled"
	RoutingKeyLoanInterestPaid = "loan.interest_paid"
	RoutingKeyLoanClosed       = "loan.closed"
	RoutingKeyLoanDeleted      = "loan.deleted"
	RoutingKeyLoanRestored     = "loan.restored"
	RoutingKeyLoanPurged       = "loan.purged"

	RoutingKeyCustomerCreated = "customer.created"
	RoutingKeyCustomerUpdated = "customer.updated"
	RoutingKeyCustomerDeleted = "customer.deleted"

	RoutingKeyPaymentReminder = "payment.reminder"
)

type LoanEventPayload struct {
	LoanID            string     `json:"loanId"`
	UserID            string     `json:"userId"`
	CustomerID        string     `json:"customerId"`
	Principal         float64    `json:"principal"`
	InterestRate      float64    `json:"interestRate"`
	InterestFrequency string     `json:"interestFrequency"`
	Status            string     `json:"status"`
	PrincipalPaid     bool       `json:"principalPaid"`
	Installments      int        `json:"installments"`
	PaymentID         string     `json:"paymentId,omitempty"`
	AmountPaid        *float64   `json:"amountPaid,omitempty"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`
}

type LoanEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Payload   LoanEventPayload `json:"payload"`
}

type CustomerEventPayload struct {
	CustomerID string    `json:"customerId"`
	UserID     string    `json:"userId"`
	Name       string    `json:"name"`
	Mobile     string    `json:"mobile"`
	Email      string    `json:"email"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type CustomerEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

type PaymentReminderEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	LoanID        string    `json:"loanId"`
	PaymentID     string    `json:"paymentId"`
	CustomerName  string    `json:"customerName"`
	CustomerEmail string    `json:"customerEmail"`
	DueDate       time.Time `json:"dueDate"`
	Amount        float64   `json:"amount"`
	Frequency     string    `json:"frequency"`
}
