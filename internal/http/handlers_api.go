package http

import (
	"net/http"
	"time"

	"survey/internal/core"
	"survey/internal/log"
)

// responseView is the JSON shape of one stored response.
type responseView struct {
	ID             string             `json:"id"`
	Age            int                `json:"age"`
	Gender         string             `json:"gender"`
	TotalIncome    float64            `json:"total_income"`
	Expenses       map[string]float64 `json:"expenses"`
	TotalExpenses  float64            `json:"total_expenses"`
	Savings        float64            `json:"savings"`
	SavingsRate    float64            `json:"savings_rate"`
	SubmissionDate string             `json:"submission_date"`
}

func newResponseView(r core.Record) responseView {
	return responseView{
		ID:             r.ID(),
		Age:            r.Age,
		Gender:         r.Gender,
		TotalIncome:    r.TotalIncome(),
		Expenses:       r.Expenses(),
		TotalExpenses:  r.TotalExpenses(),
		Savings:        r.Savings(),
		SavingsRate:    r.SavingsRate(),
		SubmissionDate: r.SubmittedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := s.svc.Records(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to list responses",
			log.FieldError, err,
			log.FieldOperation, log.OpList)
		InternalServerError(err.Error()).Write(w)
		return
	}

	views := make([]responseView, len(records))
	for i, rec := range records {
		views[i] = newResponseView(rec)
	}
	NewResponse().JSON(views).Write(w)
}

// handleSummary writes the summary surface, or {} when nothing is stored.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, ok, err := s.svc.Summary(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to summarize responses",
			log.FieldError, err,
			log.FieldOperation, log.OpSummary)
		InternalServerError(err.Error()).Write(w)
		return
	}
	if !ok {
		NewResponse().JSON(struct{}{}).Write(w)
		return
	}
	NewResponse().JSON(summary).Write(w)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := s.svc.Analysis(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to analyze responses",
			log.FieldError, err,
			log.FieldOperation, log.OpAnalyze)
		InternalServerError(err.Error()).Write(w)
		return
	}
	NewResponse().JSON(report).Write(w)
}
