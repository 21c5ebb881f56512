package handlers

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"time"

	"dawam/internal/export"
	"dawam/internal/models"
	"dawam/internal/services"
)

// SiteManager reads and replaces the work site
type SiteManager interface {
	Current(ctx context.Context) (models.WorkSite, error)
	Update(ctx context.Context, site models.WorkSite) (models.WorkSite, error)
	MoveTo(ctx context.Context, at models.Coordinate) (models.WorkSite, error)
}

// MonitorReader returns the latest live monitor snapshot
type MonitorReader interface {
	Latest(ctx context.Context) (*services.MonitorSnapshot, error)
}

// RecordLister lists the full attendance log
type RecordLister interface {
	ListAll(ctx context.Context) ([]models.AttendanceRecord, error)
}

// AdminHandler handles work-site settings, the live monitor and exports
type AdminHandler struct {
	sites   SiteManager
	monitor MonitorReader
	records RecordLister
	users   UserDirectory
	loc     *time.Location
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sites SiteManager, monitor MonitorReader, records RecordLister, users UserDirectory, loc *time.Location) *AdminHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AdminHandler{sites: sites, monitor: monitor, records: records, users: users, loc: loc}
}

// HandleSettings returns (GET) or replaces (PUT) the work site.
// A PUT with use_location recentres the site on the given coordinate and keeps the radius.
func (h *AdminHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		site, err := h.sites.Current(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, site)
	case http.MethodPut:
		var req struct {
			models.WorkSite
			UseLocation *locationPayload `json:"use_location"`
		}
		if err := decode(r, &req); err != nil {
			badRequest(w, "Invalid request body")
			return
		}

		var site models.WorkSite
		var err error
		if req.UseLocation != nil {
			sample := req.UseLocation.sample()
			if sample.Coordinate == nil {
				writeError(w, services.ErrLocationUnavailable)
				return
			}
			site, err = h.sites.MoveTo(r.Context(), *sample.Coordinate)
		} else {
			site, err = h.sites.Update(r.Context(), req.WorkSite)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, site)
	default:
		methodNotAllowed(w)
	}
}

// HandleMonitor returns the latest live monitor snapshot
func (h *AdminHandler) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	snap, err := h.monitor.Latest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleExport streams the attendance log as CSV or XLSX
func (h *AdminHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	records, err := h.records.ListAll(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	users, err := h.users.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, export.Rows(records, users, h.loc)); err != nil {
		writeError(w, err)
		return
	}

	day := time.Now().In(h.loc).Format(models.DateLayout)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.FileName(day)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Error writing export: %v", err)
	}
	log.Printf("📤 Exported %d records as %s", len(records), format)
}
