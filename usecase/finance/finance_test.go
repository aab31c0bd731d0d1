package finance

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/repository/memory"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

type fakeBank struct {
	outstanding decimal.Decimal
	balanceErr  error
	repaid      []decimal.Decimal
}

func (b *fakeBank) OpenAccount(context.Context) (string, error) { return "ACC-1", nil }

func (b *fakeBank) ApplyForLoan(_ context.Context, amount decimal.Decimal) (gateway.Loan, error) {
	b.outstanding = amount
	return gateway.Loan{Number: "LN-7", Amount: amount}, nil
}

func (b *fakeBank) MakePayment(context.Context, gateway.Payment) error { return nil }

func (b *fakeBank) LoanBalance(context.Context, string) (decimal.Decimal, error) {
	return b.outstanding, b.balanceErr
}

func (b *fakeBank) RepayLoan(_ context.Context, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	b.repaid = append(b.repaid, amount)
	b.outstanding = b.outstanding.Sub(amount)
	return amount, nil
}

type memJournal map[usecase.CallKey]usecase.CallRecord

func (j memJournal) Recall(_ context.Context, key usecase.CallKey) (usecase.CallRecord, bool, error) {
	rec, ok := j[key]
	return rec, ok, nil
}

func (j memJournal) Remember(_ context.Context, rec usecase.CallRecord) error {
	j[rec.Key] = rec
	return nil
}

func TestOpenAccountAndLoanStoreSettings(t *testing.T) {
	repos := memory.NewStore().Repositories()
	uc := New(repos.Simulation, &fakeBank{}, nil, decimal.NewFromInt(100), nil)
	ctx := context.Background()

	account, err := uc.OpenAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACC-1", account)

	loan, err := uc.TakeLoan(ctx, decimal.NewFromInt(5000))
	require.NoError(t, err)
	assert.Equal(t, "LN-7", loan.Number)

	stored, err := repos.Simulation.Setting(ctx, domain.SettingLoanNumber)
	require.NoError(t, err)
	assert.Equal(t, "LN-7", stored)
	initial, err := repos.Simulation.Setting(ctx, domain.SettingInitialLoan)
	require.NoError(t, err)
	assert.Equal(t, "5000", initial)

	_, err = uc.TakeLoan(ctx, decimal.Zero)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestServiceLoanPaysInstallmentThenRemainder(t *testing.T) {
	repos := memory.NewStore().Repositories()
	bank := &fakeBank{}
	uc := New(repos.Simulation, bank, memJournal{}, decimal.NewFromInt(300), nil)
	ctx := context.Background()
	_, err := uc.TakeLoan(ctx, decimal.NewFromInt(500))
	require.NoError(t, err)

	r, err := uc.ServiceLoan(ctx, 1)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(300).Equal(r.Paid))

	r, err = uc.ServiceLoan(ctx, 2)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(200).Equal(r.Paid), "capped at the outstanding balance")

	r, err = uc.ServiceLoan(ctx, 3)
	require.NoError(t, err)
	assert.True(t, r.Paid.IsZero())
	assert.Len(t, bank.repaid, 2)
}

func TestServiceLoanOncePerDay(t *testing.T) {
	repos := memory.NewStore().Repositories()
	bank := &fakeBank{}
	uc := New(repos.Simulation, bank, memJournal{}, decimal.NewFromInt(100), nil)
	ctx := context.Background()
	_, err := uc.TakeLoan(ctx, decimal.NewFromInt(1000))
	require.NoError(t, err)

	first, err := uc.ServiceLoan(ctx, 4)
	require.NoError(t, err)
	again, err := uc.ServiceLoan(ctx, 4)
	require.NoError(t, err)

	assert.Len(t, bank.repaid, 1)
	assert.True(t, first.Paid.Equal(again.Paid))
}

func TestServiceLoanWithoutLoanIsNoop(t *testing.T) {
	repos := memory.NewStore().Repositories()
	bank := &fakeBank{}
	uc := New(repos.Simulation, bank, nil, decimal.NewFromInt(100), nil)

	r, err := uc.ServiceLoan(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, r.Loan)
	assert.Empty(t, bank.repaid)
}

func TestServiceLoanBankFailure(t *testing.T) {
	repos := memory.NewStore().Repositories()
	bank := &fakeBank{}
	uc := New(repos.Simulation, bank, nil, decimal.NewFromInt(100), nil)
	ctx := context.Background()
	_, err := uc.TakeLoan(ctx, decimal.NewFromInt(1000))
	require.NoError(t, err)

	bank.balanceErr = domain.ErrCounterpartyUnavailable
	_, err = uc.ServiceLoan(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCounterpartyUnavailable)
	assert.Empty(t, bank.repaid)
}
