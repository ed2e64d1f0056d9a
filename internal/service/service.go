// Package service реализует бизнес-логику библиотечной системы:
// учёт фонда, выдачу и возврат книг, штрафы и обходные листы.
package service

import (
	"context"
	"time"

	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/registry"
	"github.com/nkumba/library-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateBook(ctx context.Context, b *model.Book) (int64, error)
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	UpdateBook(ctx context.Context, b *model.Book) error
	SetBookStatus(ctx context.Context, id int64, status model.BookStatus) error
	DeleteBook(ctx context.Context, id int64) error
	ListBooks(ctx context.Context, f repository.BookFilter) ([]model.Book, error)

	CreateStudent(ctx context.Context, s *model.Student) (int64, error)
	UpsertStudent(ctx context.Context, s *model.Student) (int64, error)
	GetStudent(ctx context.Context, id int64) (*model.Student, error)
	GetStudentByRegistration(ctx context.Context, regNumber string) (*model.Student, error)
	ListStudents(ctx context.Context) ([]model.Student, error)

	CreateBorrow(ctx context.Context, studentID, bookID int64, borrowDate, dueDate time.Time) (*model.BorrowRecord, error)
	GetBorrow(ctx context.Context, id int64) (*model.BorrowRecord, error)
	CompleteReturn(ctx context.Context, recordID int64, returnedAt time.Time, fineAmount int64, fineReason string, fineDue time.Time) (*model.BorrowRecord, error)
	ListBorrows(ctx context.Context, f repository.BorrowFilter) ([]model.BorrowRecord, error)

	CreateFine(ctx context.Context, f *model.Fine) (int64, error)
	GetFine(ctx context.Context, id int64) (*model.Fine, error)
	UpdateFineAmount(ctx context.Context, id, amount int64) (*model.Fine, error)
	PayFine(ctx context.Context, id int64, method, transactionID string, paidAt time.Time) (*model.Fine, error)
	WaiveFine(ctx context.Context, id int64) (*model.Fine, error)
	ListFines(ctx context.Context, f repository.FineFilter) ([]model.Fine, error)
	UnpaidTotal(ctx context.Context, studentID int64) (int64, error)

	CreateClearance(ctx context.Context, studentID int64, submittedAt time.Time, hasPendingBooks, hasUnpaidFines bool) (*model.ClearanceRequest, error)
	GetClearance(ctx context.Context, id int64) (*model.ClearanceRequest, error)
	ApproveClearance(ctx context.Context, id int64, reviewer string, reviewedAt time.Time) (*model.ClearanceRequest, error)
	RejectClearance(ctx context.Context, id int64, reviewer, reason string, reviewedAt time.Time) (*model.ClearanceRequest, error)
	ListClearance(ctx context.Context, status *model.ClearanceStatus) ([]model.ClearanceRequest, error)

	Summary(ctx context.Context, now time.Time) (*model.LibrarySummary, error)
}

// Config содержит параметры правил циркуляции.
type Config struct {
	LoanPeriodDays int
	FinePerDay     int64
	FineGraceDays  int
}

// Service содержит бизнес-логику библиотечной системы.
type Service struct {
	repo           Repository
	registryClient *registry.Client

	loanPeriodDays int
	finePerDay     int64
	fineGraceDays  int

	now func() time.Time
}

// NewService создаёт новый сервис с указанным репозиторием, клиентом
// академического реестра и параметрами правил циркуляции.
func NewService(repo Repository, registryClient *registry.Client, cfg Config) *Service {
	if cfg.LoanPeriodDays <= 0 {
		cfg.LoanPeriodDays = 14
	}
	if cfg.FinePerDay <= 0 {
		cfg.FinePerDay = 1000
	}
	if cfg.FineGraceDays <= 0 {
		cfg.FineGraceDays = 30
	}

	return &Service{
		repo:           repo,
		registryClient: registryClient,
		loanPeriodDays: cfg.LoanPeriodDays,
		finePerDay:     cfg.FinePerDay,
		fineGraceDays:  cfg.FineGraceDays,
		now:            time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Summary возвращает сводную статистику по фонду, штрафам и обходным листам.
func (s *Service) Summary(ctx context.Context) (*model.LibrarySummary, error) {
	return s.repo.Summary(ctx, s.now())
}

// StartRegistryRefresh запускает фоновый процесс обновления справочных данных
// студентов из академического реестра.
func (s *Service) StartRegistryRefresh(ctx context.Context) {
	if s.registryClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.refreshStudents(ctx)
			}
		}
	}()
}

func (s *Service) refreshStudents(ctx context.Context) {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return
	}

	for _, st := range students {
		rec, _, err := s.registryClient.GetStudent(ctx, st.RegistrationNumber)
		if err != nil || rec == nil {
			continue
		}

		_, _ = s.repo.UpsertStudent(ctx, &model.Student{
			RegistrationNumber: rec.RegistrationNumber,
			Name:               rec.Name,
			Email:              rec.Email,
			Faculty:            rec.Faculty,
			Course:             rec.Course,
			GraduationYear:     rec.GraduationYear,
		})
	}
}
