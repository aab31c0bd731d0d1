package httpapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
)

// Bank talks to the commercial bank.
type Bank struct {
	*Client
}

func NewBank(c *Client) *Bank {
	return &Bank{Client: c}
}

type accountResponse struct {
	AccountNumber string `json:"account_number"`
}

func (b *Bank) OpenAccount(ctx context.Context) (string, error) {
	var resp accountResponse
	if err := b.do(ctx, http.MethodPost, "/accounts", struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.AccountNumber == "" {
		return "", invalid(b.name, "account_number")
	}
	return resp.AccountNumber, nil
}

type loanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type loanResponse struct {
	Success    bool            `json:"success"`
	LoanNumber string          `json:"loan_number"`
	Amount     decimal.Decimal `json:"amount"`
}

func (b *Bank) ApplyForLoan(ctx context.Context, amount decimal.Decimal) (gateway.Loan, error) {
	var resp loanResponse
	if err := b.do(ctx, http.MethodPost, "/loans", loanRequest{Amount: amount}, &resp); err != nil {
		return gateway.Loan{}, err
	}
	if !resp.Success {
		return gateway.Loan{}, domain.ErrCounterpartyRejected
	}
	if resp.LoanNumber == "" {
		return gateway.Loan{}, invalid(b.name, "loan_number")
	}
	if resp.Amount.IsZero() {
		resp.Amount = amount
	}
	return gateway.Loan{Number: resp.LoanNumber, Amount: resp.Amount}, nil
}

type transactionRequest struct {
	ToAccountNumber string          `json:"to_account_number"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
}

type transactionResponse struct {
	Success           bool   `json:"success"`
	TransactionNumber string `json:"transaction_number"`
}

func (b *Bank) MakePayment(ctx context.Context, p gateway.Payment) error {
	if p.ToAccount == "" || !p.Amount.IsPositive() {
		return domain.ErrInvalidPayload
	}
	var resp transactionResponse
	req := transactionRequest{ToAccountNumber: p.ToAccount, Amount: p.Amount, Description: p.Reference}
	if err := b.do(ctx, http.MethodPost, "/transactions", req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return domain.ErrCounterpartyRejected
	}
	return nil
}

type loanInfoResponse struct {
	LoanNumber        string          `json:"loan_number"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

func (b *Bank) LoanBalance(ctx context.Context, loanNumber string) (decimal.Decimal, error) {
	var resp loanInfoResponse
	if err := b.do(ctx, http.MethodGet, "/loans/"+url.PathEscape(loanNumber), nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.OutstandingAmount, nil
}

type repayResponse struct {
	Success bool            `json:"success"`
	Paid    decimal.Decimal `json:"paid"`
}

func (b *Bank) RepayLoan(ctx context.Context, loanNumber string, amount decimal.Decimal) (decimal.Decimal, error) {
	var resp repayResponse
	path := "/loans/" + url.PathEscape(loanNumber) + "/pay"
	if err := b.do(ctx, http.MethodPost, path, loanRequest{Amount: amount}, &resp); err != nil {
		return decimal.Zero, err
	}
	if !resp.Success {
		return decimal.Zero, domain.ErrCounterpartyRejected
	}
	return resp.Paid, nil
}

var _ gateway.Bank = (*Bank)(nil)
