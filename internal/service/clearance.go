package service

import (
	"context"
	"strings"

	"github.com/nkumba/library-system/internal/metrics"
	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
)

// SubmitClearance создаёт заявку студента на библиотечный обходной лист.
// Флаги задолженностей вычисляются на момент подачи; повторная заявка
// при уже нерассмотренной отклоняется. После отказа студент подаёт новую
// заявку, отклонённая не изменяется.
func (s *Service) SubmitClearance(ctx context.Context, studentID int64) (*model.ClearanceRequest, error) {
	if _, err := s.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}

	open, err := s.OpenRecordsFor(ctx, studentID)
	if err != nil {
		return nil, err
	}

	unpaid, err := s.repo.UnpaidTotal(ctx, studentID)
	if err != nil {
		return nil, err
	}

	return s.repo.CreateClearance(ctx, studentID, s.now(), len(open) > 0, unpaid > 0)
}

// ApproveClearance одобряет заявку. Задолженности перепроверяются по текущим
// данным журналов, а не по снимку на момент подачи; репозиторий повторяет
// ту же проверку внутри транзакции на случай гонки с выдачей или штрафом.
func (s *Service) ApproveClearance(ctx context.Context, id int64, reviewer string) (*model.ClearanceRequest, error) {
	if strings.TrimSpace(reviewer) == "" {
		return nil, &ValidationError{Fields: map[string]string{"reviewer": "reviewer is required"}}
	}

	current, err := s.repo.GetClearance(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != model.ClearanceStatusPending {
		return nil, repository.ErrClearanceReviewed
	}

	open, err := s.OpenRecordsFor(ctx, current.StudentID)
	if err != nil {
		return nil, err
	}
	unpaid, err := s.repo.UnpaidTotal(ctx, current.StudentID)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 || unpaid > 0 {
		return nil, repository.ErrClearanceBlocked
	}

	req, err := s.repo.ApproveClearance(ctx, id, reviewer, s.now())
	if err != nil {
		return nil, err
	}

	metrics.ClearanceReviews.WithLabelValues("approved").Inc()
	return req, nil
}

// RejectClearance отклоняет заявку; причина отказа обязательна.
func (s *Service) RejectClearance(ctx context.Context, id int64, reviewer, reason string) (*model.ClearanceRequest, error) {
	errs := make(map[string]string)
	if strings.TrimSpace(reviewer) == "" {
		errs["reviewer"] = "reviewer is required"
	}
	if strings.TrimSpace(reason) == "" {
		errs["reason"] = "rejection reason is required"
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	req, err := s.repo.RejectClearance(ctx, id, reviewer, reason, s.now())
	if err != nil {
		return nil, err
	}

	metrics.ClearanceReviews.WithLabelValues("rejected").Inc()
	return req, nil
}

// ListClearance возвращает заявки, опционально отфильтрованные по статусу.
func (s *Service) ListClearance(ctx context.Context, status *model.ClearanceStatus) ([]model.ClearanceRequest, error) {
	return s.repo.ListClearance(ctx, status)
}
