package handler

import (
	"net/http"

	"github.com/markethub/internal/repository"
)

type ReportHandler struct {
	reportRepo *repository.ReportRepository
}

func NewReportHandler(reportRepo *repository.ReportRepository) *ReportHandler {
	return &ReportHandler{reportRepo: reportRepo}
}

// Summary returns aggregate marketplace counters for the admin dashboard.
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportRepo.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeData(w, http.StatusOK, "report", report)
}
