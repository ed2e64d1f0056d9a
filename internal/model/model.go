// Package model содержит доменные сущности библиотечной системы.
package model

import "time"

// BookStatus описывает физическое состояние книги в фонде.
type BookStatus string

const (
	BookStatusAvailable BookStatus = "available"
	BookStatusBorrowed  BookStatus = "borrowed"
	BookStatusDamaged   BookStatus = "damaged"
	BookStatusLost      BookStatus = "lost"
)

// Categories — фиксированный набор категорий книжного фонда.
var Categories = []string{
	"Fiction",
	"Non-Fiction",
	"Science",
	"Technology",
	"Business",
	"Arts",
	"History",
	"Philosophy",
	"Mathematics",
	"Engineering",
}

// IsValidCategory проверяет, входит ли категория в фиксированный набор.
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Book представляет экземпляр книги в фонде библиотеки.
type Book struct {
	ID       int64
	Title    string
	Author   string
	ISBN     string
	Category string
	Status   BookStatus
	Location string
	AddedAt  time.Time
}

// Student представляет справочные данные студента из академического реестра.
type Student struct {
	ID                 int64
	RegistrationNumber string
	Name               string
	Email              string
	Faculty            string
	Course             string
	GraduationYear     int
}

// BorrowStatus описывает статус записи о выдаче книги.
type BorrowStatus string

const (
	BorrowStatusActive   BorrowStatus = "active"
	BorrowStatusReturned BorrowStatus = "returned"
	// BorrowStatusOverdue никогда не сохраняется в хранилище:
	// это проекция, вычисляемая при чтении из срока возврата и текущего времени.
	BorrowStatusOverdue BorrowStatus = "overdue"
)

// BorrowRecord представляет запись о выдаче книги студенту.
type BorrowRecord struct {
	ID         int64
	BookID     int64
	StudentID  int64
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate *time.Time
	Status     BorrowStatus
	Fine       *int64
}

// FineStatus описывает статус штрафа.
type FineStatus string

const (
	FineStatusPending FineStatus = "pending"
	FineStatusPaid    FineStatus = "paid"
	FineStatusWaived  FineStatus = "waived"
)

// Fine представляет начисленный студенту штраф в целых угандийских шиллингах.
type Fine struct {
	ID            int64
	StudentID     int64
	Amount        int64
	Reason        string
	Status        FineStatus
	DueDate       time.Time
	CreatedAt     time.Time
	PaidAt        *time.Time
	PaymentMethod *string
	TransactionID *string
}

// ClearanceStatus описывает статус заявки на обходной лист.
type ClearanceStatus string

const (
	ClearanceStatusPending  ClearanceStatus = "pending"
	ClearanceStatusApproved ClearanceStatus = "approved"
	ClearanceStatusRejected ClearanceStatus = "rejected"
)

// ClearanceRequest представляет заявку выпускника на библиотечный обходной лист.
// Флаги HasPendingBooks и HasUnpaidFines — снимок на момент подачи;
// при одобрении они перепроверяются по текущим данным.
type ClearanceRequest struct {
	ID              int64
	StudentID       int64
	Status          ClearanceStatus
	SubmittedAt     time.Time
	ReviewedAt      *time.Time
	ReviewedBy      *string
	RejectionReason *string
	HasPendingBooks bool
	HasUnpaidFines  bool
}

// LibrarySummary содержит сводную статистику для отчётов и панели управления.
type LibrarySummary struct {
	TotalBooks         int64 `json:"total_books"`
	BooksInCirculation int64 `json:"books_in_circulation"`
	OverdueBooks       int64 `json:"overdue_books"`
	FinesPendingTotal  int64 `json:"fines_pending_total"`
	FinesPaidTotal     int64 `json:"fines_paid_total"`
	FinesWaivedTotal   int64 `json:"fines_waived_total"`
	StudentsWithDebt   int64 `json:"students_with_debt"`
	ClearancePending   int64 `json:"clearance_pending"`
	ClearanceApproved  int64 `json:"clearance_approved"`
	ClearanceRejected  int64 `json:"clearance_rejected"`
}
