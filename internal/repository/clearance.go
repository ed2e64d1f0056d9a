package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkumba/library-system/internal/model"
)

// CreateClearance создаёт заявку на обходной лист со снимком текущих задолженностей.
func (r *PostgresRepository) CreateClearance(ctx context.Context, studentID int64, submittedAt time.Time, hasPendingBooks, hasUnpaidFines bool) (*model.ClearanceRequest, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO clearance_requests (student_id, status, submitted_at, has_pending_books, has_unpaid_fines)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		studentID, string(model.ClearanceStatusPending), submittedAt, hasPendingBooks, hasUnpaidFines,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrClearancePending
		}
		return nil, fmt.Errorf("create clearance request: %w", err)
	}

	return &model.ClearanceRequest{
		ID:              id,
		StudentID:       studentID,
		Status:          model.ClearanceStatusPending,
		SubmittedAt:     submittedAt,
		HasPendingBooks: hasPendingBooks,
		HasUnpaidFines:  hasUnpaidFines,
	}, nil
}

// GetClearance возвращает заявку по идентификатору.
func (r *PostgresRepository) GetClearance(ctx context.Context, id int64) (*model.ClearanceRequest, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, student_id, status, submitted_at, reviewed_at, reviewed_by, rejection_reason, has_pending_books, has_unpaid_fines
		 FROM clearance_requests
		 WHERE id = $1`,
		id,
	)

	req, err := scanClearance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClearanceNotFound
		}
		return nil, fmt.Errorf("get clearance request: %w", err)
	}

	return req, nil
}

// ApproveClearance одобряет заявку. Флаги задолженностей перепроверяются по
// текущему состоянию журналов внутри транзакции: снимку на момент подачи
// доверять нельзя, обстоятельства могли измениться.
func (r *PostgresRepository) ApproveClearance(ctx context.Context, id int64, reviewer string, reviewedAt time.Time) (*model.ClearanceRequest, error) {
	var result *model.ClearanceRequest

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`SELECT id, student_id, status, submitted_at, reviewed_at, reviewed_by, rejection_reason, has_pending_books, has_unpaid_fines
			 FROM clearance_requests
			 WHERE id = $1
			 FOR UPDATE`,
			id,
		)
		req, err := scanClearance(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrClearanceNotFound
			}
			return fmt.Errorf("lock clearance request: %w", err)
		}
		if req.Status != model.ClearanceStatusPending {
			return ErrClearanceReviewed
		}

		var openBooks int64
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM borrow_records WHERE student_id = $1 AND return_date IS NULL`,
			req.StudentID,
		).Scan(&openBooks)
		if err != nil {
			return fmt.Errorf("count open records: %w", err)
		}

		var unpaidTotal int64
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM fines WHERE student_id = $1 AND status = $2`,
			req.StudentID, string(model.FineStatusPending),
		).Scan(&unpaidTotal)
		if err != nil {
			return fmt.Errorf("sum unpaid fines: %w", err)
		}

		if openBooks > 0 || unpaidTotal > 0 {
			return ErrClearanceBlocked
		}

		_, err = tx.Exec(ctx,
			`UPDATE clearance_requests
			 SET status = $2, reviewed_at = $3, reviewed_by = $4, has_pending_books = false, has_unpaid_fines = false
			 WHERE id = $1`,
			id, string(model.ClearanceStatusApproved), reviewedAt, reviewer,
		)
		if err != nil {
			return fmt.Errorf("approve clearance request: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		req.Status = model.ClearanceStatusApproved
		req.ReviewedAt = &reviewedAt
		req.ReviewedBy = &reviewer
		req.HasPendingBooks = false
		req.HasUnpaidFines = false
		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RejectClearance отклоняет заявку с указанием причины.
func (r *PostgresRepository) RejectClearance(ctx context.Context, id int64, reviewer, reason string, reviewedAt time.Time) (*model.ClearanceRequest, error) {
	var result *model.ClearanceRequest

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var status string
		err = tx.QueryRow(ctx, `SELECT status FROM clearance_requests WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrClearanceNotFound
			}
			return fmt.Errorf("lock clearance request: %w", err)
		}
		if status != string(model.ClearanceStatusPending) {
			return ErrClearanceReviewed
		}

		row := tx.QueryRow(ctx,
			`UPDATE clearance_requests
			 SET status = $2, reviewed_at = $3, reviewed_by = $4, rejection_reason = $5
			 WHERE id = $1
			 RETURNING id, student_id, status, submitted_at, reviewed_at, reviewed_by, rejection_reason, has_pending_books, has_unpaid_fines`,
			id, string(model.ClearanceStatusRejected), reviewedAt, reviewer, reason,
		)
		req, err := scanClearance(row)
		if err != nil {
			return fmt.Errorf("reject clearance request: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		result = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListClearance возвращает заявки, опционально отфильтрованные по статусу, от новых к старым.
func (r *PostgresRepository) ListClearance(ctx context.Context, status *model.ClearanceStatus) ([]model.ClearanceRequest, error) {
	query := `SELECT id, student_id, status, submitted_at, reviewed_at, reviewed_by, rejection_reason, has_pending_books, has_unpaid_fines
		 FROM clearance_requests`
	var args []any

	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY submitted_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select clearance requests: %w", err)
	}
	defer rows.Close()

	var requests []model.ClearanceRequest
	for rows.Next() {
		req, err := scanClearance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clearance request: %w", err)
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return requests, nil
}

func scanClearance(row pgx.Row) (*model.ClearanceRequest, error) {
	var (
		req    model.ClearanceRequest
		status string
	)
	err := row.Scan(&req.ID, &req.StudentID, &status, &req.SubmittedAt, &req.ReviewedAt, &req.ReviewedBy, &req.RejectionReason, &req.HasPendingBooks, &req.HasUnpaidFines)
	if err != nil {
		return nil, err
	}
	req.Status = model.ClearanceStatus(status)
	return &req, nil
}

// Summary собирает сводную статистику по фонду, штрафам и обходным листам.
func (r *PostgresRepository) Summary(ctx context.Context, now time.Time) (*model.LibrarySummary, error) {
	s := &model.LibrarySummary{}

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE return_date IS NULL),
		        COUNT(*) FILTER (WHERE return_date IS NULL AND due_date < $1)
		 FROM borrow_records`,
		now,
	).Scan(&s.BooksInCirculation, &s.OverdueBooks)
	if err != nil {
		return nil, fmt.Errorf("summarize borrow records: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&s.TotalBooks)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount) FILTER (WHERE status = 'pending'), 0),
		        COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0),
		        COALESCE(SUM(amount) FILTER (WHERE status = 'waived'), 0),
		        COUNT(DISTINCT student_id) FILTER (WHERE status = 'pending')
		 FROM fines`,
	).Scan(&s.FinesPendingTotal, &s.FinesPaidTotal, &s.FinesWaivedTotal, &s.StudentsWithDebt)
	if err != nil {
		return nil, fmt.Errorf("summarize fines: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'approved'),
		        COUNT(*) FILTER (WHERE status = 'rejected')
		 FROM clearance_requests`,
	).Scan(&s.ClearancePending, &s.ClearanceApproved, &s.ClearanceRejected)
	if err != nil {
		return nil, fmt.Errorf("summarize clearance requests: %w", err)
	}

	return s, nil
}
