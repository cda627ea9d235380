package report

import (
	"context"
	"fmt"
	"io"

	"loan-manager/internal/domain/loan"

	"github.com/xuri/excelize/v2"
)

const (
	loansSheet        = "Loans"
	installmentsSheet = "Installments"
	dateLayout        = "2006-01-02"
)

var (
	loanHeader = []interface{}{
		"Loan ID", "Customer", "Mobile", "Email", "Principal", "Rate %", "Frequency",
		"Start", "End", "Status", "Principal Paid", "Interest Scheduled", "Interest Paid", "Pending Installments",
	}
	installmentHeader = []interface{}{
		"Loan ID", "Customer", "Payment ID", "Period Start", "Period End", "Due Date", "Amount", "Status", "Paid On", "Amount Paid",
	}
)

// ExportLoans writes an xlsx workbook with one row per loan and one row per installment.
func (s *service) ExportLoans(ctx context.Context, userID, status string, w io.Writer) error {
	rows, err := s.AllLoansData(ctx, userID, status)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.WarnContext(ctx, "Failed to close workbook", "error", cerr)
		}
	}()

	if err := f.SetSheetName("Sheet1", loansSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(installmentsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	if err := writeRow(f, loansSheet, 1, loanHeader); err != nil {
		return err
	}
	if err := writeRow(f, installmentsSheet, 1, installmentHeader); err != nil {
		return err
	}
	for _, sheet := range []string{loansSheet, installmentsSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	now := s.clock.Now()
	installmentRow := 2
	for i, rc := range rows {
		l, c := rc.Loan, rc.Customer
		pending := 0
		for _, p := range l.InterestPayments {
			if p.Status == loan.PaymentStatusPending {
				pending++
			}
		}
		if err := writeRow(f, loansSheet, i+2, []interface{}{
			l.ID, c.Name, c.Mobile, c.Email, l.Principal, l.InterestRate, string(l.InterestFrequency),
			l.StartDate.Format(dateLayout), l.EndDate.Format(dateLayout), string(l.Status), l.PrincipalPaid,
			l.TotalInterestScheduled(), l.TotalInterestPaid(), pending,
		}); err != nil {
			return err
		}

		for _, p := range l.InterestPayments {
			paidOn, amountPaid := "", interface{}("")
			if p.PaidOn != nil {
				paidOn = p.PaidOn.Format(dateLayout)
			}
			if p.AmountPaid != nil {
				amountPaid = *p.AmountPaid
			}
			if err := writeRow(f, installmentsSheet, installmentRow, []interface{}{
				l.ID, c.Name, p.ID, p.PeriodStart.Format(dateLayout), p.PeriodEnd.Format(dateLayout),
				p.DueDate.Format(dateLayout), p.Amount, string(p.EffectiveStatus(now)), paidOn, amountPaid,
			}); err != nil {
				return err
			}
			installmentRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.InfoContext(ctx, "Exported loans workbook", "userID", userID, "loans", len(rows))
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
