package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	loadapp "github.com/loadengine/backend/internal/application/load"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/interfaces/http/dto"
	"github.com/loadengine/backend/internal/interfaces/http/middleware"
)

// Dispatcher runs structured load requests and looks up their ledger entries
type Dispatcher interface {
	Dispatch(ctx context.Context, req load.LoadRequest, user string) (*loadapp.DispatchResult, error)
	FindByReference(ctx context.Context, code string) (*load.LedgerEntry, error)
}

// QueryProcessor runs free-text load queries
type QueryProcessor interface {
	Process(ctx context.Context, query, user string, source load.BotSource) (*loadapp.DispatchResult, error)
}

// OrphanLister lists callbacks that never correlated
type OrphanLister interface {
	List(ctx context.Context, limit int) ([]load.OrphanRecord, error)
}

const (
	defaultOrphanLimit = 50
	maxOrphanLimit     = 500
)

// LoadHandler serves the load request endpoints
type LoadHandler struct {
	BaseHandler
	dispatcher Dispatcher
	queries    QueryProcessor
	orphans    OrphanLister
}

// NewLoadHandler creates a new LoadHandler
func NewLoadHandler(dispatcher Dispatcher, queries QueryProcessor, orphans OrphanLister) *LoadHandler {
	middleware.SetupValidator()
	return &LoadHandler{
		dispatcher: dispatcher,
		queries:    queries,
		orphans:    orphans,
	}
}

// Reload dispatches a structured load request.
// A provider rejection is still a 200 with status REJECTED in the body.
//
//	POST /load/reload
func (h *LoadHandler) Reload(c *gin.Context) {
	user, ok := getUserID(c)
	if !ok {
		h.Unauthorized(c, "X-User-ID header is required")
		return
	}

	var body dto.ReloadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	req, err := body.ToDomain()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), req, user)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewDispatchResponse(result))
}

// Query parses and dispatches a free-text load query
//
//	POST /load/query
func (h *LoadHandler) Query(c *gin.Context) {
	user, ok := getUserID(c)
	if !ok {
		h.Unauthorized(c, "X-User-ID header is required")
		return
	}

	var body dto.QueryRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	source, err := load.ParseBotSource(body.Source)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.queries.Process(c.Request.Context(), body.Query, user, source)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewDispatchResponse(result))
}

// GetByReference returns the ledger entry behind a reference code
//
//	GET /load/references/:code
func (h *LoadHandler) GetByReference(c *gin.Context) {
	entry, err := h.dispatcher.FindByReference(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewLedgerEntryResponse(entry))
}

// ListOrphans returns the most recent uncorrelated callbacks
//
//	GET /load/orphans?limit=50
func (h *LoadHandler) ListOrphans(c *gin.Context) {
	limit := defaultOrphanLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxOrphanLimit {
			h.BadRequest(c, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.orphans.List(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewOrphanResponses(records))
}
