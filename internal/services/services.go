package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JBpeople/stay-ledger/internal/models"
	"github.com/JBpeople/stay-ledger/internal/repository"
)

// LedgerService validates and records transactions for the web surface
// and assembles the aggregated views. Validation errors carry the
// user-facing message and are shown as flash messages.
type LedgerService struct {
	store repository.TransactionStore
}

func NewLedgerService(store repository.TransactionStore) *LedgerService {
	return &LedgerService{store: store}
}

var (
	errAmountNotNumeric = errors.New("金额必须是数字。")
	errAmountNegative   = errors.New("金额不能小于 0。")
	errTypeInvalid      = errors.New("收支类型不合法。")
	errCategoryEmpty    = errors.New("分类不能为空。")
	errCategoryUnknown  = errors.New("分类不在可选范围内。")
	errDateInvalid      = errors.New("日期格式错误。")
)

func validate(txType, amountRaw, category, happenedOn string) (models.TxType, decimal.Decimal, error) {
	amount, err := decimal.NewFromString(amountRaw)
	if err != nil {
		return "", decimal.Zero, errAmountNotNumeric
	}
	t := models.TxType(txType)
	if !t.Valid() {
		return "", decimal.Zero, errTypeInvalid
	}
	if amount.IsNegative() {
		return "", decimal.Zero, errAmountNegative
	}
	if category == "" {
		return "", decimal.Zero, errCategoryEmpty
	}
	if !models.CategoryAllowed(category) {
		return "", decimal.Zero, errCategoryUnknown
	}
	if _, err := time.Parse("2006-01-02", happenedOn); err != nil {
		return "", decimal.Zero, errDateInvalid
	}
	return t, amount, nil
}

func (s *LedgerService) Add(txType, amountRaw, category, note, happenedOn string) error {
	t, amount, err := validate(txType, amountRaw, category, happenedOn)
	if err != nil {
		return err
	}
	return s.store.AddTransaction(&models.Transaction{
		Type:       t,
		Amount:     amount,
		Category:   category,
		Note:       note,
		HappenedOn: happenedOn,
	})
}

func (s *LedgerService) Get(id int64) (*models.Transaction, error) {
	return s.store.GetTransaction(id)
}

func (s *LedgerService) Update(id int64, txType, amountRaw, category, note, happenedOn string) error {
	t, amount, err := validate(txType, amountRaw, category, happenedOn)
	if err != nil {
		return err
	}
	return s.store.UpdateTransaction(&models.Transaction{
		ID:         id,
		Type:       t,
		Amount:     amount,
		Category:   category,
		Note:       note,
		HappenedOn: happenedOn,
	})
}

func (s *LedgerService) Delete(id int64) error {
	return s.store.DeleteTransaction(id)
}

// Overview is the index page: latest entries plus running totals.
type Overview struct {
	Rows         []*models.Transaction
	IncomeTotal  decimal.Decimal
	ExpenseTotal decimal.Decimal
	Balance      decimal.Decimal
}

func (s *LedgerService) Overview() (*Overview, error) {
	rows, err := s.store.RecentTransactions(100)
	if err != nil {
		return nil, err
	}
	income, expense, err := s.store.Totals()
	if err != nil {
		return nil, err
	}
	return &Overview{
		Rows:         rows,
		IncomeTotal:  income,
		ExpenseTotal: expense,
		Balance:      income.Sub(expense),
	}, nil
}

type CategoryShare struct {
	Category string
	Total    decimal.Decimal
	Ratio    float64 // percentage of the month's total for that type
}

type MonthlyReport struct {
	SelectedMonth    string
	AvailableMonths  []string
	IncomeTotal      decimal.Decimal
	ExpenseTotal     decimal.Decimal
	Balance          decimal.Decimal
	CategoryExpenses []CategoryShare
	CategoryIncomes  []CategoryShare
	ExpenseRows      []*models.Transaction
	IncomeRows       []*models.Transaction
}

// MonthlyReport aggregates one calendar month. An unparseable month
// falls back to the current one.
func (s *LedgerService) MonthlyReport(month string, now time.Time) (*MonthlyReport, error) {
	currentMonth := now.Format("2006-01")
	selected := month
	if _, err := time.Parse("2006-01", selected); err != nil {
		selected = currentMonth
	}

	months, err := s.store.Months()
	if err != nil {
		return nil, err
	}
	if !containsMonth(months, currentMonth) {
		months = append([]string{currentMonth}, months...)
	}
	if !containsMonth(months, selected) {
		months = append([]string{selected}, months...)
	}

	income, expense, err := s.store.MonthTotals(selected)
	if err != nil {
		return nil, err
	}

	expenses, err := s.categoryShares(selected, models.TxExpense, expense)
	if err != nil {
		return nil, err
	}
	incomes, err := s.categoryShares(selected, models.TxIncome, income)
	if err != nil {
		return nil, err
	}

	expenseRows, err := s.store.MonthTransactions(selected, models.TxExpense)
	if err != nil {
		return nil, err
	}
	incomeRows, err := s.store.MonthTransactions(selected, models.TxIncome)
	if err != nil {
		return nil, err
	}

	return &MonthlyReport{
		SelectedMonth:    selected,
		AvailableMonths:  months,
		IncomeTotal:      income,
		ExpenseTotal:     expense,
		Balance:          income.Sub(expense),
		CategoryExpenses: expenses,
		CategoryIncomes:  incomes,
		ExpenseRows:      expenseRows,
		IncomeRows:       incomeRows,
	}, nil
}

func (s *LedgerService) categoryShares(month string, txType models.TxType, total decimal.Decimal) ([]CategoryShare, error) {
	totals, err := s.store.CategoryTotals(month, txType)
	if err != nil {
		return nil, err
	}
	shares := make([]CategoryShare, 0, len(totals))
	for _, ct := range totals {
		share := CategoryShare{Category: ct.Category, Total: ct.Total}
		if total.IsPositive() {
			share.Ratio = ct.Total.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		shares = append(shares, share)
	}
	return shares, nil
}

func containsMonth(months []string, month string) bool {
	for _, m := range months {
		if m == month {
			return true
		}
	}
	return false
}
