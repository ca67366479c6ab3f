package v1

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stuorg/portal/internal/api/handler/v1/response"
	"github.com/stuorg/portal/internal/service"
	"github.com/stuorg/portal/internal/ws"
)

// LiveHandler upgrades subscribers onto the snapshot hub. Every client
// gets the current snapshot on connect and a fresh one after each
// committed mutation.
type LiveHandler struct {
	svc *service.ElectionService
	hub *ws.Hub
}

func NewLiveHandler(svc *service.ElectionService, hub *ws.Hub) *LiveHandler {
	return &LiveHandler{
		svc: svc,
		hub: hub,
	}
}

func (h *LiveHandler) HandleSubscribe(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	snapshot, err := h.svc.GetSnapshot(ctx.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound(err))
			return
		}
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleSubscribe -> %w", err)))
		return
	}

	initial, err := json.Marshal(snapshot)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	if err := h.hub.Serve(ctx.Writer, ctx.Request, eventID, initial); err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Uint("event_id", eventID), zap.Error(err))
	}
}
