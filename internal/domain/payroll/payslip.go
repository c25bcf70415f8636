package payroll

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const payDateLayout = "2006-01-02"

type payslipLine struct {
	label  string
	amount float64
}

func payslipEarnings(rec Record) []payslipLine {
	return []payslipLine{
		{"Base salary", rec.BaseSalary},
		{"Allowances", rec.Allowances},
		{"Overtime", rec.Overtime},
		{"Gross pay", rec.GrossPay},
	}
}

func payslipDeductions(rec Record) []payslipLine {
	return []payslipLine{
		{"Income tax", rec.Taxes},
		{"Social security", rec.SocialSecurity},
		{"Pension", rec.Pension},
		{"Other deductions", rec.OtherDeductions},
	}
}

func payDateString(rec Record) string {
	if rec.PayDate == nil {
		return "-"
	}
	return rec.PayDate.Format(payDateLayout)
}

// RenderPayslipText returns a fixed-width plain text payslip.
func RenderPayslipText(rec Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PAYSLIP %s\n", rec.PayPeriod)
	fmt.Fprintf(&b, "Employee: %s (%s)\n", rec.Name, rec.EmployeeID)
	if rec.Department != "" || rec.Position != "" {
		fmt.Fprintf(&b, "Department: %s  Position: %s\n", rec.Department, rec.Position)
	}
	fmt.Fprintf(&b, "Pay date: %s  Bank account: %s\n", payDateString(rec), rec.BankAccount)
	fmt.Fprintf(&b, "Status: %s\n\n", rec.PaymentStatus)

	b.WriteString("Earnings\n")
	for _, line := range payslipEarnings(rec) {
		fmt.Fprintf(&b, "  %-18s %12.2f %s\n", line.label, line.amount, CurrencyCode)
	}
	b.WriteString("Deductions\n")
	for _, line := range payslipDeductions(rec) {
		fmt.Fprintf(&b, "  %-18s %12.2f %s\n", line.label, line.amount, CurrencyCode)
	}
	fmt.Fprintf(&b, "\n  %-18s %12.2f %s\n", "Net pay", rec.NetPay, CurrencyCode)
	return b.String()
}

// WritePayslipPDF renders the record as a one page A4 payslip.
func WritePayslipPDF(w io.Writer, rec Record) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s (%s)", rec.Name, rec.EmployeeID))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Department: %s / %s", rec.Department, rec.Position))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Pay period: %s  Pay date: %s", rec.PayPeriod, payDateString(rec)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Bank account: %s", rec.BankAccount))
	pdf.Ln(12)

	section := func(title string, lines []payslipLine) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 12)
		for _, line := range lines {
			pdf.CellFormat(90, 7, line.label, "", 0, "L", false, 0, "")
			pdf.CellFormat(50, 7, fmt.Sprintf("%.2f %s", line.amount, CurrencyCode), "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}
	section("Earnings", payslipEarnings(rec))
	section("Deductions", payslipDeductions(rec))

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(90, 8, "Net pay", "T", 0, "L", false, 0, "")
	pdf.CellFormat(50, 8, fmt.Sprintf("%.2f %s", rec.NetPay, CurrencyCode), "T", 1, "R", false, 0, "")

	return pdf.Output(w)
}
