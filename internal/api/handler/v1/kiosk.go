package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stuorg/portal/internal/api/handler/v1/request"
	"github.com/stuorg/portal/internal/api/handler/v1/response"
	"github.com/stuorg/portal/internal/api/middleware"
	"github.com/stuorg/portal/internal/service"
)

type KioskHandler struct {
	svc *service.KioskService
}

func NewKioskHandler(svc *service.KioskService) *KioskHandler {
	return &KioskHandler{
		svc: svc,
	}
}

// HandleIssueToken godoc
// @Summary      Issue a single-use kiosk token for an identity-checked voter
// @Tags         kiosk
// @Produce      json
// @Param        request  body      request.IssueTokenRequest  true  "request body"
// @Success      201      {object}  response.KioskTokenResponse
// @Failure      400      {object}  response.Err
// @Failure      403      {object}  response.Err
// @Router       /kiosk/tokens [post]
func (h *KioskHandler) HandleIssueToken(ctx *gin.Context) {
	var req request.IssueTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	token, err := h.svc.IssueToken(ctx.Request.Context(), ctx.GetUint(middleware.CtxKeyUserID), req.EventID, req.VoterID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound(err))
		case errors.Is(err, service.ErrNotEventOperator):
			response.RenderErr(ctx, response.ErrForbidden(err))
		case errors.Is(err, service.ErrNotListed):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		default:
			response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleIssueToken -> %w", err)))
		}
		return
	}

	ctx.JSON(http.StatusCreated, response.KioskTokenResponse{TokenID: token.TokenID})
}

// HandleRedeemToken godoc
// @Summary      Redeem a kiosk token into a voting session bootstrap
// @Tags         kiosk
// @Produce      json
// @Param        tokenID  path      string  true  "token ID"
// @Success      200      {object}  response.RedeemResponse
// @Failure      404      {object}  response.Err
// @Router       /kiosk/tokens/{tokenID} [get]
func (h *KioskHandler) HandleRedeemToken(ctx *gin.Context) {
	token, err := h.svc.RedeemToken(ctx.Request.Context(), ctx.Param("tokenID"))
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalidOrUsed) {
			response.RenderErr(ctx, response.ErrNotFound(err))
			return
		}
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleRedeemToken -> %w", err)))
		return
	}

	ctx.JSON(http.StatusOK, response.RedeemResponse{
		EventID: token.EventID,
		VoterID: token.VoterID,
	})
}

// HandleKioskVote godoc
// @Summary      Cast the ballot a kiosk token authorizes
// @Tags         kiosk
// @Produce      json
// @Param        request  body      request.KioskVoteRequest  true  "request body"
// @Success      200      {object}  service.VoteReceipt
// @Failure      400      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Router       /kiosk/votes [post]
func (h *KioskHandler) HandleKioskVote(ctx *gin.Context) {
	var req request.KioskVoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	receipt, err := h.svc.CastVote(ctx.Request.Context(), req.TokenID, req.Selection())
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalidOrUsed) {
			response.RenderErr(ctx, response.ErrNotFound(err))
			return
		}
		renderVoteErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, receipt)
}
