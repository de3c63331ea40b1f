package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JBpeople/stay-ledger/internal/models"
)

// Keys of the app_config table.
const (
	ConfigTelegramEnabled       = "telegram_enabled"
	ConfigTelegramBotToken      = "telegram_bot_token"
	ConfigTelegramAllowedChatID = "telegram_allowed_chat_id"
	ConfigTelegramPollInterval  = "telegram_poll_interval"
	ConfigTelegramLastUpdateID  = "telegram_last_update_id"
)

// ConfigStore is a durable key/value store with upsert semantics. A
// missing key yields the caller-supplied default, never an error.
type ConfigStore interface {
	GetConfig(key, defaultVal string) (string, error)
	SetConfig(key, value string) error
}

// TransactionStore is the durable ledger. The telegram poller only
// appends; edit and delete are reserved for the web surface.
type TransactionStore interface {
	AddTransaction(tx *models.Transaction) error
	GetTransaction(id int64) (*models.Transaction, error)
	UpdateTransaction(tx *models.Transaction) error
	DeleteTransaction(id int64) error
	RecentTransactions(limit int) ([]*models.Transaction, error)
	Totals() (income, expense decimal.Decimal, err error)
	Months() ([]string, error)
	MonthTotals(month string) (income, expense decimal.Decimal, err error)
	CategoryTotals(month string, txType models.TxType) ([]CategoryTotal, error)
	MonthTransactions(month string, txType models.TxType) ([]*models.Transaction, error)
}

type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetConfig(key, defaultVal string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM app_config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return defaultVal, nil
	}
	if err != nil {
		return defaultVal, fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) SetConfig(key, value string) error {
	_, err := r.db.Exec(`
		INSERT INTO app_config(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) AddTransaction(tx *models.Transaction) error {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	res, err := r.db.Exec(`
		INSERT INTO transactions(type, amount, category, note, happened_on, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(tx.Type), tx.Amount.String(), tx.Category, tx.Note, tx.HappenedOn,
		tx.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		tx.ID = id
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(id int64) (*models.Transaction, error) {
	row := r.db.QueryRow(`
		SELECT id, type, amount, category, note, happened_on, created_at
		FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(tx *models.Transaction) error {
	_, err := r.db.Exec(`
		UPDATE transactions
		SET type = ?, amount = ?, category = ?, note = ?, happened_on = ?
		WHERE id = ?`,
		string(tx.Type), tx.Amount.String(), tx.Category, tx.Note, tx.HappenedOn, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(id int64) error {
	if _, err := r.db.Exec("DELETE FROM transactions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) RecentTransactions(limit int) ([]*models.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, type, amount, category, note, happened_on, created_at
		FROM transactions
		ORDER BY date(happened_on) DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *SQLiteRepository) Totals() (decimal.Decimal, decimal.Decimal, error) {
	row := r.db.QueryRow(`
		SELECT
		  COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END), 0)
		FROM transactions`)
	var income, expense decimal.Decimal
	if err := row.Scan(&income, &expense); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("query totals: %w", err)
	}
	return income, expense, nil
}

func (r *SQLiteRepository) Months() ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT substr(happened_on, 1, 7) AS month
		FROM transactions
		WHERE length(happened_on) >= 7
		ORDER BY month DESC`)
	if err != nil {
		return nil, fmt.Errorf("query months: %w", err)
	}
	defer rows.Close()

	var months []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		if m != "" {
			months = append(months, m)
		}
	}
	return months, rows.Err()
}

func (r *SQLiteRepository) MonthTotals(month string) (decimal.Decimal, decimal.Decimal, error) {
	row := r.db.QueryRow(`
		SELECT
		  COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0),
		  COALESCE(SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END), 0)
		FROM transactions
		WHERE substr(happened_on, 1, 7) = ?`, month)
	var income, expense decimal.Decimal
	if err := row.Scan(&income, &expense); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("query month totals: %w", err)
	}
	return income, expense, nil
}

func (r *SQLiteRepository) CategoryTotals(month string, txType models.TxType) ([]CategoryTotal, error) {
	rows, err := r.db.Query(`
		SELECT category, SUM(amount) AS total
		FROM transactions
		WHERE type = ? AND substr(happened_on, 1, 7) = ?
		GROUP BY category
		ORDER BY total DESC, category ASC`, string(txType), month)
	if err != nil {
		return nil, fmt.Errorf("query category totals: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

func (r *SQLiteRepository) MonthTransactions(month string, txType models.TxType) ([]*models.Transaction, error) {
	rows, err := r.db.Query(`
		SELECT id, type, amount, category, note, happened_on, created_at
		FROM transactions
		WHERE type = ? AND substr(happened_on, 1, 7) = ?
		ORDER BY date(happened_on) DESC, id DESC`, string(txType), month)
	if err != nil {
		return nil, fmt.Errorf("query month transactions: %w", err)
	}
	return collectTransactions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	var txType, note, createdAt string
	var noteNull sql.NullString
	if err := row.Scan(&tx.ID, &txType, &tx.Amount, &tx.Category, &noteNull, &tx.HappenedOn, &createdAt); err != nil {
		return nil, err
	}
	if noteNull.Valid {
		note = noteNull.String
	}
	tx.Type = models.TxType(txType)
	tx.Note = note
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		tx.CreatedAt = t
	}
	return tx, nil
}

func collectTransactions(rows *sql.Rows) ([]*models.Transaction, error) {
	defer rows.Close()
	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
