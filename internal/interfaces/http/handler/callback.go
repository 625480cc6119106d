package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/infrastructure/logger"
	"github.com/loadengine/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// CallbackAcceptor queues a provider callback for reconciliation
type CallbackAcceptor interface {
	Accept(ctx context.Context, payload load.CallbackPayload)
	AcceptMalformed(ctx context.Context, kind load.CallbackKind, raw []byte, cause error)
}

// CallbackHandler receives provider status callbacks. The path key picks the
// payload shape: the generic key carries GlobeLabs notifications and the
// DT One key carries DT One transactions.
type CallbackHandler struct {
	BaseHandler
	acceptor   CallbackAcceptor
	genericKey string
	dtoneKey   string
	now        func() time.Time
}

// NewCallbackHandler creates a new CallbackHandler
func NewCallbackHandler(acceptor CallbackAcceptor, genericKey, dtoneKey string) *CallbackHandler {
	return &CallbackHandler{
		acceptor:   acceptor,
		genericKey: genericKey,
		dtoneKey:   dtoneKey,
		now:        time.Now,
	}
}

// Receive acknowledges a callback and hands it to the reconciler. The answer
// does not wait for correlation.
//
//	POST /load/callback/:apiKey
func (h *CallbackHandler) Receive(c *gin.Context) {
	kind, ok := h.kindFor(c.Param("apiKey"))
	if !ok {
		logger.GetGinLogger(c).Warn("Callback with unknown API key rejected",
			zap.String("client_ip", c.ClientIP()))
		h.Unauthorized(c, "Unknown callback key")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Callback body too large")
			return
		}
		h.BadRequest(c, "Failed to read callback body")
		return
	}

	payload, err := load.ParseCallback(kind, body)
	if err != nil {
		logger.GetGinLogger(c).Warn("Malformed provider callback",
			zap.String("kind", string(kind)),
			zap.Error(err))
		h.acceptor.AcceptMalformed(c.Request.Context(), kind, body, err)
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed callback payload")
		return
	}

	h.acceptor.Accept(c.Request.Context(), payload)
	c.JSON(http.StatusOK, dto.NewCallbackAck(h.now()))
}

func (h *CallbackHandler) kindFor(key string) (load.CallbackKind, bool) {
	switch {
	case keyMatches(key, h.genericKey):
		return load.CallbackGlobeLabs, true
	case keyMatches(key, h.dtoneKey):
		return load.CallbackDTOne, true
	}
	return "", false
}

func keyMatches(got, want string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
