package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nkumba/library-system/internal/model"
)

// CreateFine сохраняет новый штраф и возвращает его идентификатор.
func (r *PostgresRepository) CreateFine(ctx context.Context, f *model.Fine) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO fines (student_id, amount, reason, status, due_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		f.StudentID, f.Amount, f.Reason, string(f.Status), f.DueDate, f.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create fine: %w", err)
	}
	return id, nil
}

// GetFine возвращает штраф по идентификатору.
func (r *PostgresRepository) GetFine(ctx context.Context, id int64) (*model.Fine, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, student_id, amount, reason, status, due_date, created_at, paid_at, payment_method, transaction_id
		 FROM fines
		 WHERE id = $1`,
		id,
	)

	f, err := scanFine(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFineNotFound
		}
		return nil, fmt.Errorf("get fine: %w", err)
	}

	return f, nil
}

// UpdateFineAmount изменяет сумму штрафа, пока он находится в статусе pending.
func (r *PostgresRepository) UpdateFineAmount(ctx context.Context, id, amount int64) (*model.Fine, error) {
	return r.updatePendingFine(ctx, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE fines SET amount = $2 WHERE id = $1`, id, amount)
		return err
	})
}

// PayFine отмечает штраф оплаченным с указанием способа оплаты и идентификатора транзакции.
func (r *PostgresRepository) PayFine(ctx context.Context, id int64, method, transactionID string, paidAt time.Time) (*model.Fine, error) {
	return r.updatePendingFine(ctx, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE fines
			 SET status = $2, paid_at = $3, payment_method = $4, transaction_id = $5
			 WHERE id = $1`,
			id, string(model.FineStatusPaid), paidAt, method, transactionID,
		)
		return err
	})
}

// WaiveFine отмечает штраф списанным.
func (r *PostgresRepository) WaiveFine(ctx context.Context, id int64) (*model.Fine, error) {
	return r.updatePendingFine(ctx, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE fines SET status = $2 WHERE id = $1`,
			id, string(model.FineStatusWaived),
		)
		return err
	})
}

// updatePendingFine выполняет мутацию штрафа под блокировкой строки,
// убедившись, что штраф ещё не закрыт.
func (r *PostgresRepository) updatePendingFine(ctx context.Context, id int64, mutate func(tx pgx.Tx) error) (*model.Fine, error) {
	var result *model.Fine

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		err = tx.QueryRow(ctx, `SELECT status FROM fines WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrFineNotFound
			}
			return fmt.Errorf("lock fine: %w", err)
		}
		if status != string(model.FineStatusPending) {
			return ErrFineNotPending
		}

		if err := mutate(tx); err != nil {
			return fmt.Errorf("update fine: %w", err)
		}

		row := tx.QueryRow(ctx,
			`SELECT id, student_id, amount, reason, status, due_date, created_at, paid_at, payment_method, transaction_id
			 FROM fines
			 WHERE id = $1`,
			id,
		)
		updated, err := scanFine(row)
		if err != nil {
			return fmt.Errorf("reload fine: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// FineFilter задаёт условия отбора штрафов.
type FineFilter struct {
	StudentID *int64
	Status    *model.FineStatus
}

// ListFines возвращает штрафы, удовлетворяющие фильтру, от новых к старым.
func (r *PostgresRepository) ListFines(ctx context.Context, f FineFilter) ([]model.Fine, error) {
	query := `SELECT id, student_id, amount, reason, status, due_date, created_at, paid_at, payment_method, transaction_id FROM fines`
	var conds []string
	var args []any

	if f.StudentID != nil {
		args = append(args, *f.StudentID)
		conds = append(conds, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select fines: %w", err)
	}
	defer rows.Close()

	var fines []model.Fine
	for rows.Next() {
		fine, err := scanFine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		fines = append(fines, *fine)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return fines, nil
}

// UnpaidTotal возвращает сумму неоплаченных штрафов студента.
func (r *PostgresRepository) UnpaidTotal(ctx context.Context, studentID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)
		 FROM fines
		 WHERE student_id = $1 AND status = $2`,
		studentID, string(model.FineStatusPending),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum unpaid fines: %w", err)
	}
	return total, nil
}

func scanFine(row pgx.Row) (*model.Fine, error) {
	var (
		f      model.Fine
		status string
	)
	err := row.Scan(&f.ID, &f.StudentID, &f.Amount, &f.Reason, &status, &f.DueDate, &f.CreatedAt, &f.PaidAt, &f.PaymentMethod, &f.TransactionID)
	if err != nil {
		return nil, err
	}
	f.Status = model.FineStatus(status)
	return &f, nil
}
