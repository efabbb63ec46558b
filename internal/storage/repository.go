package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"survey/internal/core"

	_ "modernc.org/sqlite"
)

const (
	insertResponseSQL = `INSERT INTO responses (age, gender, total_income, submission_date)
VALUES (?, ?, ?, ?)`
	insertExpenseSQL = `INSERT INTO response_expenses (response_id, category, amount)
VALUES (?, ?, ?)`
	listResponsesSQL = `SELECT id, age, gender, total_income, submission_date
FROM responses ORDER BY id`
	listExpensesSQL = `SELECT response_id, category, amount
FROM response_expenses ORDER BY response_id, category`
)

// SQLiteRepository stores responses in two tables: one row per response and
// one row per (response, category) expense.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert implements ResponseWriter. The response and its expenses are
// written in one transaction.
func (r *SQLiteRepository) Insert(ctx context.Context, rec core.Record) (id string, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, insertResponseSQL,
		rec.Age, rec.Gender, rec.TotalIncome(), rec.SubmittedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert response: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read response id: %w", err)
	}

	for category, amount := range rec.Expenses() {
		if _, err = tx.ExecContext(ctx, insertExpenseSQL, rowID, category, amount); err != nil {
			return "", fmt.Errorf("insert expense %s: %w", category, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("commit response: %w", err)
	}

	slog.DebugContext(ctx, "Response saved to SQLite",
		"id", rowID,
		"age", rec.Age,
		"categories", len(rec.Expenses()))

	return strconv.FormatInt(rowID, 10), nil
}

// ListDocuments implements ResponseLister.
func (r *SQLiteRepository) ListDocuments(ctx context.Context) ([]core.Document, error) {
	expenses, err := r.listExpenses(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, listResponsesSQL)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var docs []core.Document
	for rows.Next() {
		var (
			id        int64
			age       int64
			gender    string
			income    float64
			submitted string
		)
		if err := rows.Scan(&id, &age, &gender, &income, &submitted); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		doc := core.Document{
			core.KeyID:             strconv.FormatInt(id, 10),
			core.KeyAge:            age,
			core.KeyGender:         gender,
			core.KeyTotalIncome:    income,
			core.KeySubmissionDate: submitted,
		}
		if e, ok := expenses[id]; ok {
			doc[core.KeyExpenses] = e
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return docs, nil
}

func (r *SQLiteRepository) listExpenses(ctx context.Context) (map[int64]map[string]float64, error) {
	rows, err := r.db.QueryContext(ctx, listExpensesSQL)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[string]float64)
	for rows.Next() {
		var (
			responseID int64
			category   string
			amount     float64
		)
		if err := rows.Scan(&responseID, &category, &amount); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		if out[responseID] == nil {
			out[responseID] = make(map[string]float64)
		}
		out[responseID][category] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}
