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

// CreateBorrow выдаёт книгу студенту: проверяет доступность книги, создаёт
// запись о выдаче и помечает книгу выданной в одной транзакции.
func (r *PostgresRepository) CreateBorrow(ctx context.Context, studentID, bookID int64, borrowDate, dueDate time.Time) (*model.BorrowRecord, error) {
	var rec *model.BorrowRecord

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var exists bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check student: %w", err)
		}
		if !exists {
			return ErrStudentNotFound
		}

		// Блокируем строку книги, чтобы две выдачи не прошли параллельно.
		var status string
		err = tx.QueryRow(ctx, `SELECT status FROM books WHERE id = $1 FOR UPDATE`, bookID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBookNotFound
			}
			return fmt.Errorf("lock book: %w", err)
		}

		// Доступность выводится из состояния журнала выдач, а не только из
		// сохранённого статуса книги: статус мог разойтись с журналом.
		var openCount int64
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM borrow_records WHERE book_id = $1 AND return_date IS NULL`,
			bookID,
		).Scan(&openCount)
		if err != nil {
			return fmt.Errorf("count open records: %w", err)
		}

		available := openCount == 0 &&
			(status == string(model.BookStatusAvailable) || status == string(model.BookStatusBorrowed))
		if !available {
			return ErrBookUnavailable
		}

		var id int64
		err = tx.QueryRow(ctx,
			`INSERT INTO borrow_records (book_id, student_id, borrow_date, due_date)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			bookID, studentID, borrowDate, dueDate,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert borrow record: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE books SET status = $2 WHERE id = $1`,
			bookID, string(model.BookStatusBorrowed),
		)
		if err != nil {
			return fmt.Errorf("mark book borrowed: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		rec = &model.BorrowRecord{
			ID:         id,
			BookID:     bookID,
			StudentID:  studentID,
			BorrowDate: borrowDate,
			DueDate:    dueDate,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// GetBorrow возвращает запись о выдаче по идентификатору.
func (r *PostgresRepository) GetBorrow(ctx context.Context, id int64) (*model.BorrowRecord, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, book_id, student_id, borrow_date, due_date, return_date, fine
		 FROM borrow_records
		 WHERE id = $1`,
		id,
	)

	rec, err := scanBorrow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBorrowNotFound
		}
		return nil, fmt.Errorf("get borrow record: %w", err)
	}

	return rec, nil
}

// CompleteReturn закрывает запись о выдаче: проставляет дату возврата и штраф,
// возвращает книгу в фонд и при ненулевом штрафе создаёт запись в журнале
// штрафов — всё в одной транзакции.
func (r *PostgresRepository) CompleteReturn(ctx context.Context, recordID int64, returnedAt time.Time, fineAmount int64, fineReason string, fineDue time.Time) (*model.BorrowRecord, error) {
	var rec *model.BorrowRecord

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		row := tx.QueryRow(ctx,
			`SELECT id, book_id, student_id, borrow_date, due_date, return_date, fine
			 FROM borrow_records
			 WHERE id = $1
			 FOR UPDATE`,
			recordID,
		)
		current, err := scanBorrow(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBorrowNotFound
			}
			return fmt.Errorf("lock borrow record: %w", err)
		}
		if current.ReturnDate != nil {
			return ErrAlreadyReturned
		}

		_, err = tx.Exec(ctx,
			`UPDATE borrow_records SET return_date = $2, fine = $3 WHERE id = $1`,
			recordID, returnedAt, fineAmount,
		)
		if err != nil {
			return fmt.Errorf("close borrow record: %w", err)
		}

		_, err = tx.Exec(ctx,
			`UPDATE books SET status = $2 WHERE id = $1`,
			current.BookID, string(model.BookStatusAvailable),
		)
		if err != nil {
			return fmt.Errorf("restore book: %w", err)
		}

		if fineAmount > 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO fines (student_id, amount, reason, status, due_date, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				current.StudentID, fineAmount, fineReason, string(model.FineStatusPending), fineDue, returnedAt,
			)
			if err != nil {
				return fmt.Errorf("insert fine: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}

		current.ReturnDate = &returnedAt
		current.Fine = &fineAmount
		rec = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// BorrowFilter задаёт условия отбора записей о выдаче.
type BorrowFilter struct {
	StudentID *int64
	OpenOnly  bool
}

// ListBorrows возвращает записи о выдаче, удовлетворяющие фильтру.
func (r *PostgresRepository) ListBorrows(ctx context.Context, f BorrowFilter) ([]model.BorrowRecord, error) {
	query := `SELECT id, book_id, student_id, borrow_date, due_date, return_date, fine FROM borrow_records`
	var conds []string
	var args []any

	if f.StudentID != nil {
		args = append(args, *f.StudentID)
		conds = append(conds, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if f.OpenOnly {
		conds = append(conds, "return_date IS NULL")
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY borrow_date DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select borrow records: %w", err)
	}
	defer rows.Close()

	var records []model.BorrowRecord
	for rows.Next() {
		rec, err := scanBorrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan borrow record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

func scanBorrow(row pgx.Row) (*model.BorrowRecord, error) {
	var rec model.BorrowRecord
	err := row.Scan(&rec.ID, &rec.BookID, &rec.StudentID, &rec.BorrowDate, &rec.DueDate, &rec.ReturnDate, &rec.Fine)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
