package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nkumba/library-system/internal/metrics"
	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
)

// EffectiveStatus вычисляет фактический статус записи о выдаче на момент now.
// Статус overdue никогда не хранится: он выводится заново при каждом чтении,
// поскольку время идёт независимо от записей в хранилище.
func EffectiveStatus(rec *model.BorrowRecord, now time.Time) model.BorrowStatus {
	if rec.ReturnDate != nil {
		return model.BorrowStatusReturned
	}
	if now.After(rec.DueDate) {
		return model.BorrowStatusOverdue
	}
	return model.BorrowStatusActive
}

// OverdueDays возвращает количество календарных дней просрочки на момент now:
// округление прошедшего времени вверх до целых суток, не меньше нуля.
func OverdueDays(rec *model.BorrowRecord, now time.Time) int64 {
	elapsed := now.Sub(rec.DueDate)
	if elapsed <= 0 {
		return 0
	}
	return int64(math.Ceil(elapsed.Hours() / 24))
}

func (s *Service) fineFor(rec *model.BorrowRecord, now time.Time) int64 {
	if EffectiveStatus(rec, now) != model.BorrowStatusOverdue {
		return 0
	}
	return OverdueDays(rec, now) * s.finePerDay
}

// BorrowBook выдаёт книгу студенту на настроенный срок.
func (s *Service) BorrowBook(ctx context.Context, studentID, bookID int64) (*model.BorrowRecord, error) {
	now := s.now()
	due := now.AddDate(0, 0, s.loanPeriodDays)

	rec, err := s.repo.CreateBorrow(ctx, studentID, bookID, now, due)
	if err != nil {
		return nil, err
	}

	metrics.BorrowsTotal.Inc()

	rec.Status = model.BorrowStatusActive
	return rec, nil
}

// ReturnBook принимает книгу обратно. Для просроченной выдачи вычисляется
// штраф из количества дней просрочки, и в журнале штрафов создаётся запись.
// Повторный возврат отклоняется.
func (s *Service) ReturnBook(ctx context.Context, recordID int64) (*model.BorrowRecord, error) {
	rec, err := s.repo.GetBorrow(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.ReturnDate != nil {
		return nil, repository.ErrAlreadyReturned
	}

	now := s.now()
	fine := s.fineFor(rec, now)

	var reason string
	if fine > 0 {
		book, err := s.repo.GetBook(ctx, rec.BookID)
		if err != nil {
			return nil, err
		}
		reason = fmt.Sprintf("Overdue book: %q", book.Title)
	}

	updated, err := s.repo.CompleteReturn(ctx, recordID, now, fine, reason, now.AddDate(0, 0, s.fineGraceDays))
	if err != nil {
		return nil, err
	}

	metrics.ReturnsTotal.Inc()
	if fine > 0 {
		metrics.FinesIssuedTotal.Inc()
		metrics.FinesIssuedAmount.Add(float64(fine))
	}

	updated.Status = model.BorrowStatusReturned
	return updated, nil
}

// OpenRecordsFor возвращает открытые выдачи студента (active или overdue).
func (s *Service) OpenRecordsFor(ctx context.Context, studentID int64) ([]model.BorrowRecord, error) {
	records, err := s.repo.ListBorrows(ctx, repository.BorrowFilter{StudentID: &studentID, OpenOnly: true})
	if err != nil {
		return nil, err
	}

	s.annotateStatuses(records)
	return records, nil
}

// ListBorrows возвращает записи о выдаче с вычисленными фактическими статусами,
// опционально отфильтрованные по студенту и статусу.
func (s *Service) ListBorrows(ctx context.Context, studentID *int64, status *model.BorrowStatus) ([]model.BorrowRecord, error) {
	records, err := s.repo.ListBorrows(ctx, repository.BorrowFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	s.annotateStatuses(records)

	if status == nil {
		return records, nil
	}

	filtered := records[:0]
	for _, rec := range records {
		if rec.Status == *status {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func (s *Service) annotateStatuses(records []model.BorrowRecord) {
	now := s.now()
	for i := range records {
		records[i].Status = EffectiveStatus(&records[i], now)
	}
}
