package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"route-recon/internal/services"
	"route-recon/internal/timeutil"
	"route-recon/pkg/utils"
)

// SnapshotLister is satisfied by services.ArchiveService.
type SnapshotLister interface {
	Snapshots(ctx context.Context, module, route, date string) ([]services.Snapshot, error)
}

type ReportHandler struct {
	service *services.ReportService
	archive SnapshotLister
}

// NewReportHandler creates the report handler. archive may be nil when
// snapshot archiving is disabled.
func NewReportHandler(service *services.ReportService, archive SnapshotLister) *ReportHandler {
	return &ReportHandler{service: service, archive: archive}
}

func queryRouteDate(r *http.Request) (string, string) {
	route := r.URL.Query().Get("route")
	date := r.URL.Query().Get("date")
	if date == "" {
		date = timeutil.Today()
	}
	return route, date
}

func reportFilename(route, date, ext string) string {
	return fmt.Sprintf("%s_%s.%s", strings.ReplaceAll(route, " ", "_"), date, ext)
}

// Daily handles GET /api/reports/daily?route=&date=&format=pdf|xlsx|json
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	route, date := queryRouteDate(r)
	format := strings.ToLower(r.URL.Query().Get("format"))

	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case "", "json":
		report, err := h.service.Daily(r.Context(), route, date)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, report)
		return
	case "pdf":
		body, err = h.service.DailyPDF(r.Context(), route, date)
		contentType = "application/pdf"
	case "xlsx":
		body, err = h.service.DailyXLSX(r.Context(), route, date)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		http.Error(w, "format must be pdf, xlsx or json", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(route, date, format)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Snapshots handles GET /api/archive?module=&route=&date=
func (h *ReportHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		http.Error(w, "Snapshot archive is disabled", http.StatusNotFound)
		return
	}
	route, date := queryRouteDate(r)
	module := r.URL.Query().Get("module")
	if module == "" {
		module = "inventory"
	}
	if route == "" || !timeutil.ValidDate(date) {
		http.Error(w, "route and a YYYY-MM-DD date are required", http.StatusBadRequest)
		return
	}

	snaps, err := h.archive.Snapshots(r.Context(), module, route, date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	utils.JSON(w, http.StatusOK, snaps)
}

func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrValidation) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
