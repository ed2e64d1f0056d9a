package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nkumba/library-system/internal/model"
	"github.com/nkumba/library-system/internal/repository"
	"github.com/nkumba/library-system/internal/service"
)

type stubService struct {
	bookResp *model.Book
	bookErr  error

	booksResp []model.Book
	booksErr  error

	removeBookErr error

	studentResp *model.Student
	studentErr  error

	studentsResp []model.Student
	studentsErr  error

	borrowResp *model.BorrowRecord
	borrowErr  error

	borrowsResp []model.BorrowRecord
	borrowsErr  error

	fineResp *model.Fine
	fineErr  error

	finesResp []model.Fine
	finesErr  error

	clearanceResp *model.ClearanceRequest
	clearanceErr  error

	clearancesResp []model.ClearanceRequest
	clearancesErr  error

	summaryResp *model.LibrarySummary
	summaryErr  error
}

func (s *stubService) RegisterBook(ctx context.Context, draft service.BookDraft) (*model.Book, error) {
	return s.bookResp, s.bookErr
}

func (s *stubService) UpdateBook(ctx context.Context, id int64, patch service.BookDraft) (*model.Book, error) {
	return s.bookResp, s.bookErr
}

func (s *stubService) SetBookStatus(ctx context.Context, id int64, status model.BookStatus) (*model.Book, error) {
	return s.bookResp, s.bookErr
}

func (s *stubService) RemoveBook(ctx context.Context, id int64) error {
	return s.removeBookErr
}

func (s *stubService) QueryBooks(ctx context.Context, f repository.BookFilter) ([]model.Book, error) {
	return s.booksResp, s.booksErr
}

func (s *stubService) CreateStudent(ctx context.Context, student *model.Student) (*model.Student, error) {
	return s.studentResp, s.studentErr
}

func (s *stubService) ImportStudent(ctx context.Context, regNumber string) (*model.Student, error) {
	return s.studentResp, s.studentErr
}

func (s *stubService) StudentByRegistration(ctx context.Context, regNumber string) (*model.Student, error) {
	return s.studentResp, s.studentErr
}

func (s *stubService) ListStudents(ctx context.Context) ([]model.Student, error) {
	return s.studentsResp, s.studentsErr
}

func (s *stubService) BorrowBook(ctx context.Context, studentID, bookID int64) (*model.BorrowRecord, error) {
	return s.borrowResp, s.borrowErr
}

func (s *stubService) ReturnBook(ctx context.Context, recordID int64) (*model.BorrowRecord, error) {
	return s.borrowResp, s.borrowErr
}

func (s *stubService) ListBorrows(ctx context.Context, studentID *int64, status *model.BorrowStatus) ([]model.BorrowRecord, error) {
	return s.borrowsResp, s.borrowsErr
}

func (s *stubService) CreateManualFine(ctx context.Context, studentID, amount int64, reason string, dueDate time.Time) (*model.Fine, error) {
	return s.fineResp, s.fineErr
}

func (s *stubService) AdjustFineAmount(ctx context.Context, id, newAmount int64) (*model.Fine, error) {
	return s.fineResp, s.fineErr
}

func (s *stubService) PayFine(ctx context.Context, id int64, paymentMethod string) (*model.Fine, error) {
	return s.fineResp, s.fineErr
}

func (s *stubService) WaiveFine(ctx context.Context, id int64) (*model.Fine, error) {
	return s.fineResp, s.fineErr
}

func (s *stubService) ListFines(ctx context.Context, f repository.FineFilter) ([]model.Fine, error) {
	return s.finesResp, s.finesErr
}

func (s *stubService) SubmitClearance(ctx context.Context, studentID int64) (*model.ClearanceRequest, error) {
	return s.clearanceResp, s.clearanceErr
}

func (s *stubService) ApproveClearance(ctx context.Context, id int64, reviewer string) (*model.ClearanceRequest, error) {
	return s.clearanceResp, s.clearanceErr
}

func (s *stubService) RejectClearance(ctx context.Context, id int64, reviewer, reason string) (*model.ClearanceRequest, error) {
	return s.clearanceResp, s.clearanceErr
}

func (s *stubService) ListClearance(ctx context.Context, status *model.ClearanceStatus) ([]model.ClearanceRequest, error) {
	return s.clearancesResp, s.clearancesErr
}

func (s *stubService) Summary(ctx context.Context) (*model.LibrarySummary, error) {
	return s.summaryResp, s.summaryErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewHandler(svc, logger)
}

func TestRegisterBook_Created(t *testing.T) {
	svc := &stubService{
		bookResp: &model.Book{
			ID:       1,
			Title:    "Clean Architecture",
			Author:   "Robert Martin",
			ISBN:     "9780134494166",
			Category: "Computer Science",
			Status:   model.BookStatusAvailable,
			AddedAt:  time.Now().UTC(),
		},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(bookRequest{
		Title:    "Clean Architecture",
		Author:   "Robert Martin",
		ISBN:     "9780134494166",
		Category: "Computer Science",
		Location: "Shelf A2",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterBook(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}
}

func TestRegisterBook_ValidationError(t *testing.T) {
	svc := &stubService{
		bookErr: &service.ValidationError{Fields: map[string]string{"isbn": "invalid ISBN"}},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(bookRequest{Title: "No ISBN"})

	req := httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegisterBook(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}

	var payload struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Errors["isbn"] == "" {
		t.Fatalf("expected field error for isbn, got %v", payload.Errors)
	}
}

func TestGetBooks_NoContent(t *testing.T) {
	svc := &stubService{
		booksResp: []model.Book{},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/books", nil)
	rec := httptest.NewRecorder()

	h.GetBooks(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestGetStudents_ByRegistrationNumber(t *testing.T) {
	svc := &stubService{
		studentResp: &model.Student{
			ID:                 1,
			RegistrationNumber: "NKU/2020/1234",
			Name:               "Jane Student",
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/students?registration_number=NKU%2F2020%2F1234", nil)
	rec := httptest.NewRecorder()

	h.GetStudents(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp studentResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.RegistrationNumber != "NKU/2020/1234" {
		t.Fatalf("registration number = %q, want NKU/2020/1234", resp.RegistrationNumber)
	}
}

func TestGetStudents_ByRegistrationNotFound(t *testing.T) {
	svc := &stubService{
		studentErr: repository.ErrStudentNotFound,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/students?registration_number=NKU%2F1999%2F0000", nil)
	rec := httptest.NewRecorder()

	h.GetStudents(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestBorrowBook_ConflictWhenUnavailable(t *testing.T) {
	svc := &stubService{
		borrowErr: repository.ErrBookUnavailable,
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(borrowRequest{StudentID: 1, BookID: 2})

	req := httptest.NewRequest(http.MethodPost, "/api/borrowings", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.BorrowBook(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestReturnBook_ThroughRouter(t *testing.T) {
	now := time.Now().UTC()
	returned := now
	fine := int64(6000)
	svc := &stubService{
		borrowResp: &model.BorrowRecord{
			ID:         7,
			BookID:     2,
			StudentID:  1,
			BorrowDate: now.AddDate(0, 0, -20),
			DueDate:    now.AddDate(0, 0, -6),
			ReturnDate: &returned,
			Status:     model.BorrowStatusReturned,
			Fine:       &fine,
		},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/borrowings/7/return", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp borrowResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Fine != 6000 {
		t.Fatalf("fine = %d, want 6000", resp.Fine)
	}
	if resp.Status != string(model.BorrowStatusReturned) {
		t.Fatalf("status = %q, want %q", resp.Status, model.BorrowStatusReturned)
	}
}

func TestPayFine_NotFound(t *testing.T) {
	svc := &stubService{
		fineErr: repository.ErrFineNotFound,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(payFineRequest{PaymentMethod: "cash"})

	req := httptest.NewRequest(http.MethodPost, "/api/fines/5/pay", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNotFound)
	}
}

func TestApproveClearance_ConflictWhenBlocked(t *testing.T) {
	svc := &stubService{
		clearanceErr: repository.ErrClearanceBlocked,
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(reviewRequest{Reviewer: "librarian"})

	req := httptest.NewRequest(http.MethodPost, "/api/clearance/3/approve", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusConflict)
	}
}

func TestGetSummary_JSONResponse(t *testing.T) {
	svc := &stubService{
		summaryResp: &model.LibrarySummary{
			TotalBooks:         10,
			BooksInCirculation: 3,
			OverdueBooks:       1,
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/summary", nil)
	rec := httptest.NewRecorder()

	h.GetSummary(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp model.LibrarySummary
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.TotalBooks != 10 || resp.OverdueBooks != 1 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
}
