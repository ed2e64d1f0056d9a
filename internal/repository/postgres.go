// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/nkumba/library-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrBookNotFound возвращается, если книга не найдена.
var (
	ErrBookNotFound = errors.New("book not found")
	// ErrBookExists возвращается при попытке зарегистрировать книгу с уже занятым ISBN.
	ErrBookExists = errors.New("book with this ISBN already exists")
	// ErrBookUnavailable возвращается при попытке выдать книгу, которую выдать нельзя.
	ErrBookUnavailable = errors.New("book is not available for borrowing")
	// ErrBookOnLoan возвращается при попытке удалить книгу с открытой выдачей.
	ErrBookOnLoan = errors.New("book has an open borrow record")
	// ErrStudentNotFound возвращается, если студент не найден.
	ErrStudentNotFound = errors.New("student not found")
	// ErrStudentExists возвращается при попытке создать студента с занятым регистрационным номером.
	ErrStudentExists = errors.New("student already exists")
	// ErrBorrowNotFound возвращается, если запись о выдаче не найдена.
	ErrBorrowNotFound = errors.New("borrow record not found")
	// ErrAlreadyReturned возвращается при повторной попытке вернуть книгу.
	ErrAlreadyReturned = errors.New("book already returned")
	// ErrFineNotFound возвращается, если штраф не найден.
	ErrFineNotFound = errors.New("fine not found")
	// ErrFineNotPending возвращается при попытке изменить закрытый штраф.
	ErrFineNotPending = errors.New("fine is not pending")
	// ErrClearanceNotFound возвращается, если заявка на обходной лист не найдена.
	ErrClearanceNotFound = errors.New("clearance request not found")
	// ErrClearancePending возвращается, если у студента уже есть нерассмотренная заявка.
	ErrClearancePending = errors.New("student already has a pending clearance request")
	// ErrClearanceReviewed возвращается при попытке повторно рассмотреть заявку.
	ErrClearanceReviewed = errors.New("clearance request already reviewed")
	// ErrClearanceBlocked возвращается, если у студента есть несданные книги или неоплаченные штрафы.
	ErrClearanceBlocked = errors.New("student has pending books or unpaid fines")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при конфликтах сериализации, дедлоках и сетевых сбоях.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
			return err
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateBook сохраняет новую книгу и возвращает её идентификатор.
func (r *PostgresRepository) CreateBook(ctx context.Context, b *model.Book) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO books (title, author, isbn, category, status, location, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		b.Title, b.Author, b.ISBN, b.Category, string(b.Status), b.Location, b.AddedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrBookExists, b.ISBN)
		}
		return 0, fmt.Errorf("create book: %w", err)
	}
	return id, nil
}

// GetBook возвращает книгу по идентификатору.
func (r *PostgresRepository) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, title, author, isbn, category, status, location, added_at
		 FROM books
		 WHERE id = $1`,
		id,
	)

	b, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	return b, nil
}

// UpdateBook сохраняет изменённые данные книги.
func (r *PostgresRepository) UpdateBook(ctx context.Context, b *model.Book) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE books
		 SET title = $2, author = $3, isbn = $4, category = $5, location = $6
		 WHERE id = $1`,
		b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Location,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrBookExists, b.ISBN)
		}
		return fmt.Errorf("update book: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// SetBookStatus безусловно перезаписывает статус книги.
func (r *PostgresRepository) SetBookStatus(ctx context.Context, id int64, status model.BookStatus) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE books SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("set book status: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrBookNotFound
	}
	return nil
}

// DeleteBook удаляет книгу, если по ней нет открытой выдачи.
func (r *PostgresRepository) DeleteBook(ctx context.Context, id int64) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var openCount int64
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM borrow_records WHERE book_id = $1 AND return_date IS NULL`,
			id,
		).Scan(&openCount)
		if err != nil {
			return fmt.Errorf("count open records: %w", err)
		}
		if openCount > 0 {
			return ErrBookOnLoan
		}

		cmdTag, err := tx.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			return ErrBookNotFound
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// BookFilter задаёт условия отбора книг.
type BookFilter struct {
	Query    string
	Category string
	Status   *model.BookStatus
}

// ListBooks возвращает книги, удовлетворяющие фильтру, в порядке добавления.
func (r *PostgresRepository) ListBooks(ctx context.Context, f BookFilter) ([]model.Book, error) {
	query := `SELECT id, title, author, isbn, category, status, location, added_at FROM books`
	var conds []string
	var args []any

	if f.Query != "" {
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
		n := fmt.Sprintf("$%d", len(args))
		conds = append(conds, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(author) LIKE %s OR LOWER(isbn) LIKE %s)", n, n, n))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, string(*f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return books, nil
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var (
		b      model.Book
		status string
	)
	if err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category, &status, &b.Location, &b.AddedAt); err != nil {
		return nil, err
	}
	b.Status = model.BookStatus(status)
	return &b, nil
}

// CreateStudent сохраняет нового студента.
func (r *PostgresRepository) CreateStudent(ctx context.Context, s *model.Student) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (registration_number, name, email, faculty, course, graduation_year)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		s.RegistrationNumber, s.Name, s.Email, s.Faculty, s.Course, s.GraduationYear,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrStudentExists, s.RegistrationNumber)
		}
		return 0, fmt.Errorf("create student: %w", err)
	}
	return id, nil
}

// UpsertStudent сохраняет студента, обновляя данные при совпадении регистрационного номера.
func (r *PostgresRepository) UpsertStudent(ctx context.Context, s *model.Student) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (registration_number, name, email, faculty, course, graduation_year)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (registration_number) DO UPDATE
		 SET name = EXCLUDED.name,
		     email = EXCLUDED.email,
		     faculty = EXCLUDED.faculty,
		     course = EXCLUDED.course,
		     graduation_year = EXCLUDED.graduation_year
		 RETURNING id`,
		s.RegistrationNumber, s.Name, s.Email, s.Faculty, s.Course, s.GraduationYear,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert student: %w", err)
	}
	return id, nil
}

// GetStudent возвращает студента по идентификатору.
func (r *PostgresRepository) GetStudent(ctx context.Context, id int64) (*model.Student, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, registration_number, name, email, faculty, course, graduation_year
		 FROM students
		 WHERE id = $1`,
		id,
	)
	return scanStudent(row)
}

// GetStudentByRegistration возвращает студента по регистрационному номеру.
func (r *PostgresRepository) GetStudentByRegistration(ctx context.Context, regNumber string) (*model.Student, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, registration_number, name, email, faculty, course, graduation_year
		 FROM students
		 WHERE registration_number = $1`,
		regNumber,
	)
	return scanStudent(row)
}

// ListStudents возвращает всех студентов в порядке регистрационного номера.
func (r *PostgresRepository) ListStudents(ctx context.Context) ([]model.Student, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, registration_number, name, email, faculty, course, graduation_year
		 FROM students
		 ORDER BY registration_number`,
	)
	if err != nil {
		return nil, fmt.Errorf("select students: %w", err)
	}
	defer rows.Close()

	var students []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return students, nil
}

func scanStudent(row pgx.Row) (*model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.RegistrationNumber, &s.Name, &s.Email, &s.Faculty, &s.Course, &s.GraduationYear)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &s, nil
}
