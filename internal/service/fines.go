package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkumba/library-system/internal/metrics"
	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
)

// CreateManualFine начисляет студенту штраф вручную (утеря, порча и т.п.).
// Нулевая дата оплаты заменяется на текущий момент плюс льготный период.
func (s *Service) CreateManualFine(ctx context.Context, studentID, amount int64, reason string, dueDate time.Time) (*model.Fine, error) {
	errs := make(map[string]string)
	if amount < 0 {
		errs["amount"] = "amount must be non-negative"
	}
	if strings.TrimSpace(reason) == "" {
		errs["reason"] = "reason is required"
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	if _, err := s.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}

	now := s.now()
	if dueDate.IsZero() {
		dueDate = now.AddDate(0, 0, s.fineGraceDays)
	}

	fine := &model.Fine{
		StudentID: studentID,
		Amount:    amount,
		Reason:    reason,
		Status:    model.FineStatusPending,
		DueDate:   dueDate,
		CreatedAt: now,
	}

	id, err := s.repo.CreateFine(ctx, fine)
	if err != nil {
		return nil, err
	}
	fine.ID = id

	metrics.FinesIssuedTotal.Inc()
	metrics.FinesIssuedAmount.Add(float64(amount))

	return fine, nil
}

// AdjustFineAmount изменяет сумму штрафа; допускается только пока штраф не
// закрыт. Репозиторий повторяет проверку статуса под блокировкой строки.
func (s *Service) AdjustFineAmount(ctx context.Context, id, newAmount int64) (*model.Fine, error) {
	if newAmount < 0 {
		return nil, &ValidationError{Fields: map[string]string{"amount": "amount must be non-negative"}}
	}

	current, err := s.repo.GetFine(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != model.FineStatusPending {
		return nil, repository.ErrFineNotPending
	}

	return s.repo.UpdateFineAmount(ctx, id, newAmount)
}

// PayFine регистрирует оплату штрафа и присваивает уникальный идентификатор транзакции.
func (s *Service) PayFine(ctx context.Context, id int64, paymentMethod string) (*model.Fine, error) {
	if strings.TrimSpace(paymentMethod) == "" {
		return nil, &ValidationError{Fields: map[string]string{"payment_method": "payment method is required"}}
	}

	return s.repo.PayFine(ctx, id, paymentMethod, newTransactionID(), s.now())
}

// WaiveFine списывает штраф без оплаты.
func (s *Service) WaiveFine(ctx context.Context, id int64) (*model.Fine, error) {
	return s.repo.WaiveFine(ctx, id)
}

// UnpaidTotalFor возвращает сумму неоплаченных штрафов студента.
func (s *Service) UnpaidTotalFor(ctx context.Context, studentID int64) (int64, error) {
	return s.repo.UnpaidTotal(ctx, studentID)
}

// ListFines возвращает штрафы, удовлетворяющие фильтру.
func (s *Service) ListFines(ctx context.Context, f repository.FineFilter) ([]model.Fine, error) {
	return s.repo.ListFines(ctx, f)
}

func newTransactionID() string {
	u := uuid.New()
	return fmt.Sprintf("TXN%X", u[:6])
}
