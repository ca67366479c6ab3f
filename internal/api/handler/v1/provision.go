package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stuorg/portal/internal/api/handler/v1/request"
	"github.com/stuorg/portal/internal/api/handler/v1/response"
	"github.com/stuorg/portal/internal/api/middleware"
	"github.com/stuorg/portal/internal/domain"
	"github.com/stuorg/portal/internal/service"
)

type ProvisionHandler struct {
	svc  *service.ProvisionService
	uSvc *service.UserService
}

func NewProvisionHandler(svc *service.ProvisionService, uSvc *service.UserService) *ProvisionHandler {
	return &ProvisionHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

func (h *ProvisionHandler) actor(ctx *gin.Context) string {
	user, err := h.uSvc.GetUser(ctx.Request.Context(), ctx.GetUint(middleware.CtxKeyUserID))
	if err != nil {
		return fmt.Sprintf("user:%d", ctx.GetUint(middleware.CtxKeyUserID))
	}
	return user.Email
}

func (h *ProvisionHandler) HandleSubmitRequest(ctx *gin.Context) {
	var req request.SubmitRequestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	created, err := h.svc.Submit(ctx.Request.Context(), domain.ElectionRequest{
		Organizer:    h.actor(ctx),
		ProposedName: req.ProposedName,
		DocumentURL:  req.DocumentURL,
	})
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleSubmitRequest -> %w", err)))
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (h *ProvisionHandler) HandleListRequests(ctx *gin.Context) {
	reqs, err := h.svc.List(ctx.Request.Context())
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleListRequests -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, reqs)
}

// HandleApproveRequest godoc
// @Summary      Approve an election request, creating its event
// @Tags         provisioning
// @Produce      json
// @Param        requestID  path      int                            true  "request ID"
// @Param        request    body      request.ApproveRequestRequest  true  "request body"
// @Success      201        {object}  response.ApproveResponse
// @Failure      409        {object}  response.Err
// @Router       /requests/{requestID}/approve [post]
func (h *ProvisionHandler) HandleApproveRequest(ctx *gin.Context) {
	requestID, err := strconv.ParseUint(ctx.Param("requestID"), 10, 32)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid request ID")))
		return
	}

	var req request.ApproveRequestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	event, err := h.svc.Approve(ctx.Request.Context(), h.actor(ctx), uint(requestID), req.OperatorID)
	if err != nil {
		if errors.Is(err, service.ErrRequestAlreadyResolved) || errors.Is(err, service.ErrOperatorAssigned) {
			response.RenderErr(ctx, response.ErrConflict(err))
			return
		}
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleApproveRequest -> %w", err)))
		return
	}

	ctx.JSON(http.StatusCreated, response.ApproveResponse{EventID: event.ID})
}

func (h *ProvisionHandler) HandleRejectRequest(ctx *gin.Context) {
	requestID, err := strconv.ParseUint(ctx.Param("requestID"), 10, 32)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid request ID")))
		return
	}

	if err := h.svc.Reject(ctx.Request.Context(), h.actor(ctx), uint(requestID)); err != nil {
		if errors.Is(err, service.ErrRequestAlreadyResolved) {
			response.RenderErr(ctx, response.ErrConflict(err))
			return
		}
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleRejectRequest -> %w", err)))
		return
	}

	ctx.Status(http.StatusNoContent)
}
