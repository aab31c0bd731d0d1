// Package finance owns the company's bank relationship: the account, the
// start-up loan and its daily servicing.
package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// KindLoanRepayment keys repayments in the call journal.
const KindLoanRepayment domain.Kind = "loan_repayment"

// Repayment reports one servicing attempt.
type Repayment struct {
	Loan        string          `json:"loan"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Paid        decimal.Decimal `json:"paid"`
}

type UseCase struct {
	simulation  repository.SimulationRepository
	bank        gateway.Bank
	journal     usecase.CallJournal
	installment decimal.Decimal
	logger      *zap.Logger
}

func New(simulation repository.SimulationRepository, bank gateway.Bank, journal usecase.CallJournal, installment decimal.Decimal, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = usecase.NopJournal{}
	}
	return &UseCase{
		simulation:  simulation,
		bank:        bank,
		journal:     journal,
		installment: installment,
		logger:      logger,
	}
}

// OpenAccount opens the company account and stores its number.
func (uc *UseCase) OpenAccount(ctx context.Context) (string, error) {
	if uc.bank == nil {
		return "", domain.ErrCounterpartyUnavailable
	}
	account, err := uc.bank.OpenAccount(ctx)
	if err != nil {
		return "", fmt.Errorf("open account: %w", err)
	}
	if err := uc.simulation.SetSetting(ctx, domain.SettingAccountNumber, account); err != nil {
		return "", err
	}
	uc.logger.Info("bank account opened", zap.String("account", account))
	return account, nil
}

// TakeLoan applies for the start-up loan and stores its number and amount.
func (uc *UseCase) TakeLoan(ctx context.Context, amount decimal.Decimal) (gateway.Loan, error) {
	if uc.bank == nil {
		return gateway.Loan{}, domain.ErrCounterpartyUnavailable
	}
	if !amount.IsPositive() {
		return gateway.Loan{}, domain.WrapError(domain.ErrCodeInvalid, "loan amount must be positive", fmt.Errorf("%s", amount))
	}
	loan, err := uc.bank.ApplyForLoan(ctx, amount)
	if err != nil {
		return gateway.Loan{}, fmt.Errorf("apply for loan: %w", err)
	}
	if err := uc.simulation.SetSetting(ctx, domain.SettingLoanNumber, loan.Number); err != nil {
		return gateway.Loan{}, err
	}
	if err := uc.simulation.SetSetting(ctx, domain.SettingInitialLoan, loan.Amount.String()); err != nil {
		return gateway.Loan{}, err
	}
	uc.logger.Info("loan granted", zap.String("loan", loan.Number), zap.String("amount", loan.Amount.String()))
	return loan, nil
}

// ServiceLoan repays min(outstanding, installment) once per day. Without a
// stored loan it does nothing.
func (uc *UseCase) ServiceLoan(ctx context.Context, day int) (Repayment, error) {
	loan, err := uc.simulation.Setting(ctx, domain.SettingLoanNumber)
	if errors.Is(err, domain.ErrSettingNotFound) || (err == nil && loan == "") {
		return Repayment{}, nil
	}
	if err != nil {
		return Repayment{}, err
	}
	result := Repayment{Loan: loan, Paid: decimal.Zero}
	if uc.bank == nil {
		return result, domain.ErrCounterpartyUnavailable
	}

	key := usecase.CallKey{Kind: KindLoanRepayment, Subject: loan, Stage: domain.Status(fmt.Sprintf("day-%d", day))}
	if prior, found, err := uc.journal.Recall(ctx, key); err != nil {
		return result, err
	} else if found {
		if err := json.Unmarshal(prior.Result, &result); err != nil {
			return result, fmt.Errorf("journal replay %s: %w", loan, err)
		}
		return result, nil
	}

	outstanding, err := uc.bank.LoanBalance(ctx, loan)
	if err != nil {
		return result, fmt.Errorf("loan balance %s: %w", loan, err)
	}
	result.Outstanding = outstanding
	amount := decimal.Min(outstanding, uc.installment)
	if !amount.IsPositive() {
		return result, nil
	}

	paid, err := uc.bank.RepayLoan(ctx, loan, amount)
	if err != nil {
		return result, fmt.Errorf("repay loan %s: %w", loan, err)
	}
	result.Paid = paid

	payload, err := json.Marshal(result)
	if err == nil {
		err = uc.journal.Remember(ctx, usecase.CallRecord{Key: key, Day: day, Result: payload})
	}
	if err != nil {
		uc.logger.Error("journal write failed after repayment", zap.String("loan", loan), zap.Error(err))
	}

	logger.FromContext(ctx, uc.logger).Info("loan repayment",
		zap.String("loan", loan),
		zap.String("outstanding", outstanding.String()),
		zap.String("paid", paid.String()))
	return result, nil
}
