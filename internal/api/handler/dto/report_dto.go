package dto

type LoanReportResponse struct {
	Loan     LoanResponse     `json:"loan"`
	Customer CustomerResponse `json:"customer"`
}
