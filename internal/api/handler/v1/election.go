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

type ElectionHandler struct {
	svc  *service.ElectionService
	uSvc *service.UserService
}

func NewElectionHandler(svc *service.ElectionService, uSvc *service.UserService) *ElectionHandler {
	return &ElectionHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

func eventIDParam(ctx *gin.Context) (uint, error) {
	raw, err := strconv.ParseUint(ctx.Param("eventID"), 10, 32)
	if err != nil {
		return 0, errors.New("invalid event ID")
	}
	return uint(raw), nil
}

// voterIdentity resolves the authenticated member to the identity used
// on election rolls (their email).
func (h *ElectionHandler) voterIdentity(ctx *gin.Context) (string, error) {
	userID := ctx.GetUint(middleware.CtxKeyUserID)
	user, err := h.uSvc.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// renderVoteErr maps eligibility failures onto their user-facing
// responses. These are expected conditions, not bugs.
func renderVoteErr(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.RenderErr(ctx, response.ErrNotFound(err))
	case errors.Is(err, service.ErrNotListed),
		errors.Is(err, service.ErrOfflineModeActive),
		errors.Is(err, service.ErrVotingClosed),
		errors.Is(err, service.ErrAbstainNotAllowed),
		errors.Is(err, service.ErrCandidateNotFound),
		errors.Is(err, service.ErrInvalidSelection):
		response.RenderErr(ctx, response.ErrBadRequest(err))
	case errors.Is(err, service.ErrTransactionConflict):
		response.RenderErr(ctx, response.ErrConflict(err))
	default:
		response.RenderErr(ctx, response.ErrInternalServerError(err))
	}
}

// HandleListOpenEvents godoc
// @Summary      List events open for the homepage banner
// @Tags         elections
// @Produce      json
// @Success      200  {array}   domain.ElectionEvent
// @Failure      500  {object}  response.Err
// @Router       /elections [get]
func (h *ElectionHandler) HandleListOpenEvents(ctx *gin.Context) {
	events, err := h.svc.ListOpenEvents(ctx.Request.Context())
	if err != nil {
		err = fmt.Errorf("v1.HandleListOpenEvents -> h.svc.ListOpenEvents -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, events)
}

// HandleGetEvent godoc
// @Summary      Get an event snapshot with its resolved status
// @Tags         elections
// @Produce      json
// @Param        eventID  path      int  true  "event ID"
// @Success      200      {object}  domain.ElectionSnapshot
// @Failure      404      {object}  response.Err
// @Router       /elections/{eventID} [get]
func (h *ElectionHandler) HandleGetEvent(ctx *gin.Context) {
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
		err = fmt.Errorf("v1.HandleGetEvent -> h.svc.GetSnapshot -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, snapshot)
}

// HandleGetEligibility godoc
// @Summary      Check whether the caller may vote right now
// @Tags         elections
// @Produce      json
// @Param        eventID  path      int  true  "event ID"
// @Success      200      {object}  response.EligibilityResponse
// @Failure      404      {object}  response.Err
// @Router       /elections/{eventID}/eligibility [get]
func (h *ElectionHandler) HandleGetEligibility(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	voterID, err := h.voterIdentity(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	err = h.svc.CanVote(ctx.Request.Context(), eventID, voterID, domain.ChannelOnline)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound(err))
			return
		}
		if errors.Is(err, service.ErrNotListed) ||
			errors.Is(err, service.ErrAlreadyVoted) ||
			errors.Is(err, service.ErrOfflineModeActive) ||
			errors.Is(err, service.ErrVotingClosed) {
			ctx.JSON(http.StatusOK, response.EligibilityResponse{Allowed: false, Reason: err.Error()})
			return
		}
		err = fmt.Errorf("v1.HandleGetEligibility -> h.svc.CanVote -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.EligibilityResponse{Allowed: true})
}

// HandleCastVote godoc
// @Summary      Cast a ballot in an event
// @Tags         elections
// @Produce      json
// @Param        eventID  path      int                      true  "event ID"
// @Param        request  body      request.CastVoteRequest  true  "request body"
// @Success      200      {object}  service.VoteReceipt
// @Failure      400      {object}  response.Err
// @Failure      404      {object}  response.Err
// @Failure      409      {object}  response.Err
// @Router       /elections/{eventID}/votes [post]
func (h *ElectionHandler) HandleCastVote(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.CastVoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	voterID, err := h.voterIdentity(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	receipt, err := h.svc.CastVote(ctx.Request.Context(), eventID, voterID, domain.ChannelOnline, req.Selection())
	if err != nil {
		renderVoteErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, receipt)
}

func (h *ElectionHandler) HandleAddCandidate(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.AddCandidateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	candidate, err := h.svc.AddCandidate(ctx.Request.Context(), ctx.GetUint(middleware.CtxKeyUserID), domain.Candidate{
		EventID:     eventID,
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		PhotoURL:    req.PhotoURL,
		Position:    req.Position,
	})
	if err != nil {
		renderOperatorErr(ctx, "v1.HandleAddCandidate", err)
		return
	}

	ctx.JSON(http.StatusCreated, candidate)
}

func (h *ElectionHandler) HandleAmendRoll(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.AmendRollRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	err = h.svc.AmendRoll(ctx.Request.Context(), ctx.GetUint(middleware.CtxKeyUserID), eventID, req.Add, req.Remove)
	if err != nil {
		if errors.Is(err, service.ErrVoterHasBallot) {
			response.RenderErr(ctx, response.ErrConflict(err))
			return
		}
		renderOperatorErr(ctx, "v1.HandleAmendRoll", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ElectionHandler) HandleSetStatus(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.SetStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	err = h.svc.SetManualStatus(ctx.Request.Context(), ctx.GetUint(middleware.CtxKeyUserID), eventID, domain.EventStatus(req.Status))
	if err != nil {
		renderOperatorErr(ctx, "v1.HandleSetStatus", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (h *ElectionHandler) HandleUpdateSettings(ctx *gin.Context) {
	eventID, err := eventIDParam(ctx)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.UpdateSettingsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}
	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	err = h.svc.UpdateEventSettings(ctx.Request.Context(), ctx.GetUint(middleware.CtxKeyUserID), eventID, service.EventSettings{
		StartAt:        req.StartAt,
		EndAt:          req.EndAt,
		AllowAbstain:   req.AllowAbstain,
		PublishResults: req.PublishResults,
		OfflineMode:    req.OfflineMode,
	})
	if err != nil {
		renderOperatorErr(ctx, "v1.HandleUpdateSettings", err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func renderOperatorErr(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		response.RenderErr(ctx, response.ErrNotFound(err))
	case errors.Is(err, service.ErrNotEventOperator):
		response.RenderErr(ctx, response.ErrForbidden(err))
	default:
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("%s -> %w", op, err)))
	}
}
