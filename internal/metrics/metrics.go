// Package metrics содержит счётчики Prometheus для операций циркуляции.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BorrowsTotal — количество выдач книг.
	BorrowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_borrows_total",
		Help: "Total number of books borrowed.",
	})

	// ReturnsTotal — количество возвратов книг.
	ReturnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_returns_total",
		Help: "Total number of books returned.",
	})

	// FinesIssuedTotal — количество начисленных штрафов.
	FinesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_fines_issued_total",
		Help: "Total number of fines issued.",
	})

	// FinesIssuedAmount — суммарный размер начисленных штрафов в UGX.
	FinesIssuedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_fines_issued_amount_ugx",
		Help: "Total amount of fines issued, in UGX.",
	})

	// ClearanceReviews — количество рассмотренных заявок на обходной лист по исходу.
	ClearanceReviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_clearance_reviews_total",
		Help: "Total number of clearance reviews by outcome.",
	}, []string{"outcome"})
)
