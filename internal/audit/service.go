package audit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/listing"
)

// Messages shown when the log cannot be loaded.
const (
	MsgLoadFailed  = "Error al cargar los logs de auditoría."
	MsgLoadOffline = "No se pudo conectar al servidor para obtener los logs."
)

type logsResponse struct {
	Logs        []Entry `json:"logs"`
	TotalPages  int     `json:"total_pages"`
	CurrentPage int     `json:"current_page"`
	TotalLogs   int     `json:"total_logs"`
}

// Service reads the audit trail from the backend.
type Service struct{}

// NewService creates the audit log service.
func NewService() *Service {
	return &Service{}
}

// Timeline fetches one page of the log. Paging counts are taken from the backend as given.
func (s *Service) Timeline(ctx context.Context, caller backend.Caller, filters TimelineFilters) (Result, error) {
	filters = filters.Normalize()
	query := url.Values{
		"page":     {strconv.Itoa(filters.Page)},
		"per_page": {strconv.Itoa(filters.PerPage)},
	}
	var resp logsResponse
	if err := caller.Get(ctx, "/api/audit_logs", query, &resp); err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}

	rows := make([]TimelineRow, 0, len(resp.Logs))
	for _, e := range resp.Logs {
		rows = append(rows, mapTimelineRow(e))
	}
	totalPages := resp.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}
	page := resp.CurrentPage
	if page < 1 {
		page = 1
	}
	return Result{
		Rows:       rows,
		Pagination: listing.FromServer(page, filters.PerPage, resp.TotalLogs, totalPages),
	}, nil
}

// LoadMessage maps a fetch failure to the banner text.
func LoadMessage(err error) string {
	if backend.IsBusiness(err) {
		return backend.UserMessage(err, MsgLoadFailed)
	}
	return backend.UserMessage(err, MsgLoadOffline)
}

// EmptyPagination is the paging state shown when a page could not be loaded.
func EmptyPagination(filters TimelineFilters) listing.Pagination {
	filters = filters.Normalize()
	return listing.NewPagination(1, filters.PerPage, 0)
}
