package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/hive-corporation/watchtower-chat/internal/adapter/exporter"
	"github.com/hive-corporation/watchtower-chat/internal/core/domain"
	"github.com/hive-corporation/watchtower-chat/internal/core/ports"
	"github.com/hive-corporation/watchtower-chat/internal/core/service"
)

const (
	statsCacheKey   = "stats"
	maxMessageBytes = 1 << 20

	dailyActivityDays   = 7
	dailyActivitySample = 1000
)

type RestHandler struct {
	repo       ports.IOCRepository
	pipeline   *service.IngestionPipeline
	tlds       domain.TLDChecker
	statsCache *cache.Cache
	logger     *zap.SugaredLogger
}

// NewRestHandler builds the handler. pipeline may be nil for a read-only
// API; statsTTL of zero disables stats caching. The cached stats are dropped
// whenever pipeline stores a new IOC, so messages ingested over any
// transport sharing the pipeline show up immediately.
func NewRestHandler(repo ports.IOCRepository, pipeline *service.IngestionPipeline, tlds domain.TLDChecker, statsTTL time.Duration, logger *zap.SugaredLogger) *RestHandler {
	h := &RestHandler{
		repo:     repo,
		pipeline: pipeline,
		tlds:     tlds,
		logger:   logger,
	}
	if statsTTL > 0 {
		h.statsCache = cache.New(statsTTL, 2*statsTTL)
		if pipeline != nil {
			pipeline.OnInsert(func(service.Report) {
				h.statsCache.Delete(statsCacheKey)
			})
		}
	}
	return h
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "watchtower-chat",
	}
	writeJSON(w, http.StatusOK, response)
}

// Stats returns store totals, cached for a few seconds.
func (h *RestHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.statsCache != nil {
		if cached, ok := h.statsCache.Get(statsCacheKey); ok {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.repo.Stats(ctx)
	if err != nil {
		h.logger.Errorw("failed to read stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	if h.statsCache != nil {
		h.statsCache.SetDefault(statsCacheKey, stats)
	}
	writeJSON(w, http.StatusOK, stats)
}

// DailyStats returns detections per UTC day for the most recent active days,
// computed over the latest dailyActivitySample records.
func (h *RestHandler) DailyStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	iocs, err := h.repo.Query(ctx, domain.QueryFilter{Limit: dailyActivitySample})
	if err != nil {
		h.logger.Errorw("failed to read daily activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read daily activity")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":  domain.DailyActivity(iocs, dailyActivityDays),
		"total": len(iocs),
	})
}

// ListIOCs returns recent IOCs. With search set it switches to a substring
// match; type and limit still apply to the result.
func (h *RestHandler) ListIOCs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	iocType, err := domain.ParseIOCType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var iocs []domain.IOC
	if search := q.Get("search"); search != "" {
		iocs, err = h.repo.Search(ctx, search)
		if err == nil {
			iocs = filterSearch(iocs, iocType, limit)
		}
	} else {
		iocs, err = h.repo.Query(ctx, domain.QueryFilter{Type: iocType, Limit: limit})
	}
	if err != nil {
		h.logger.Errorw("failed to query IOCs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query IOCs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(iocs),
		"iocs":  iocs,
	})
}

func filterSearch(iocs []domain.IOC, iocType domain.IOCType, limit int) []domain.IOC {
	out := make([]domain.IOC, 0, len(iocs))
	for _, ioc := range iocs {
		if iocType != "" && ioc.Type != iocType {
			continue
		}
		out = append(out, ioc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// UniqueIOCs returns distinct values, sorted.
func (h *RestHandler) UniqueIOCs(w http.ResponseWriter, r *http.Request) {
	iocType, err := domain.ParseIOCType(r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	values, err := h.repo.UniqueValues(ctx, iocType)
	if err != nil {
		h.logger.Errorw("failed to list unique IOCs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list unique IOCs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":   iocType,
		"count":  len(values),
		"values": values,
	})
}

// Export streams every IOC as a download in the requested format.
func (h *RestHandler) Export(w http.ResponseWriter, r *http.Request) {
	exp, err := exporter.New(r.URL.Query().Get("format"), h.repo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var buf bytes.Buffer
	if err := exp.Export(ctx, &buf); err != nil {
		h.logger.Errorw("export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export IOCs")
		return
	}

	w.Header().Set("Content-Type", exp.ContentType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="iocs_export.%s"`, exp.FileExtension()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warnw("error writing export response", "error", err)
	}
}

// CheckTLD reports whether a TLD is in the loaded registry.
func (h *RestHandler) CheckTLD(w http.ResponseWriter, r *http.Request) {
	tld := mux.Vars(r)["tld"]
	valid := h.tlds != nil && h.tlds.IsValid(tld)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tld":   tld,
		"valid": valid,
	})
}

// IngestMessage scans one message and returns the pipeline report.
func (h *RestHandler) IngestMessage(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion disabled")
		return
	}

	var msg domain.Message
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(&msg); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "message too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	report := h.pipeline.ProcessMessage(r.Context(), msg.Text, msg.Source())

	status := http.StatusOK
	if report.Failed() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already sent, nothing useful can be reported on failure.
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
