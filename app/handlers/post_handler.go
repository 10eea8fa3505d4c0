// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	businessflow "github.com/amirphl/Kage-Bunshin/business_flow"
	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// PostHandlerInterface defines the contract for post handlers
type PostHandlerInterface interface {
	SchedulePost(c fiber.Ctx) error
	CancelPost(c fiber.Ctx) error
	ReschedulePost(c fiber.Ctx) error
	GetPostStatus(c fiber.Ctx) error
	RetryPost(c fiber.Ctx) error
}

// PostHandler handles post scheduling HTTP requests
type PostHandler struct {
	postFlow  businessflow.PostFlow
	validator *validator.Validate
}

// NewPostHandler creates a new post handler
func NewPostHandler(postFlow businessflow.PostFlow) *PostHandler {
	return &PostHandler{
		postFlow:  postFlow,
		validator: validator.New(),
	}
}

func (h *PostHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *PostHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SchedulePost handles the post scheduling process
func (h *PostHandler) SchedulePost(c fiber.Ctx) error {
	var req dto.SchedulePostRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)

	teamID, userID, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TeamID = teamID
	req.UserID = userID

	result, err := h.postFlow.SchedulePost(h.createRequestContext(c, "/api/v1/posts/schedule"), &req, metadata)
	if err != nil {
		if businessflow.IsScheduleTimeInPast(err) || businessflow.IsPlatformNotSupported(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Post validation failed", "POST_VALIDATION_FAILED", err.Error())
		}

		log.Println("Post scheduling failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Post scheduling failed", "POST_SCHEDULING_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Post scheduled successfully", result)
}

// CancelPost handles cancellation of a scheduled post
func (h *PostHandler) CancelPost(c fiber.Ctx) error {
	req := dto.CancelPostRequest{PostUUID: c.Params("uuid")}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post UUID", "VALIDATION_ERROR", nil)
	}

	metadata := clientMetadata(c)

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TeamID = teamID

	result, err := h.postFlow.CancelScheduledPost(h.createRequestContext(c, "/api/v1/posts/"+req.PostUUID+"/cancel"), &req, metadata)
	if err != nil {
		if businessflow.IsPostNotFound(err) || businessflow.IsPostAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Post not found", "POST_NOT_FOUND", nil)
		}
		if businessflow.IsPostNotCancellable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Post cannot be cancelled in its current status", "POST_STATE_CONFLICT", nil)
		}

		log.Println("Post cancellation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Post cancellation failed", "POST_CANCELLATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Post cancelled successfully", result)
}

// ReschedulePost handles moving a scheduled post to a new time
func (h *PostHandler) ReschedulePost(c fiber.Ctx) error {
	var req dto.ReschedulePostRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.PostUUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := clientMetadata(c)

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TeamID = teamID

	result, err := h.postFlow.ReschedulePost(h.createRequestContext(c, "/api/v1/posts/"+req.PostUUID+"/reschedule"), &req, metadata)
	if err != nil {
		if businessflow.IsPostNotFound(err) || businessflow.IsPostAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Post not found", "POST_NOT_FOUND", nil)
		}
		if businessflow.IsScheduleTimeInPast(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule time is in the past", "POST_VALIDATION_FAILED", nil)
		}
		if businessflow.IsPostNotReschedulable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Post can only be rescheduled while scheduled", "POST_STATE_CONFLICT", nil)
		}

		log.Println("Post reschedule failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Post reschedule failed", "POST_RESCHEDULE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Post rescheduled successfully", result)
}

// GetPostStatus returns persisted post state joined with live queue introspection
func (h *PostHandler) GetPostStatus(c fiber.Ctx) error {
	postUUID := c.Params("uuid")

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}

	result, err := h.postFlow.GetPostStatus(h.createRequestContext(c, "/api/v1/posts/"+postUUID), postUUID, teamID)
	if err != nil {
		if businessflow.IsPostNotFound(err) || businessflow.IsPostAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Post not found", "POST_NOT_FOUND", nil)
		}

		log.Println("Post status lookup failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Post status lookup failed", "POST_STATUS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Post status retrieved successfully", result)
}

// RetryPost handles the operator-triggered retry of failed platforms
func (h *PostHandler) RetryPost(c fiber.Ctx) error {
	req := dto.RetryPostRequest{PostUUID: c.Params("uuid")}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid post UUID", "VALIDATION_ERROR", nil)
	}

	metadata := clientMetadata(c)

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TeamID = teamID

	result, err := h.postFlow.RetryFailedPost(h.createRequestContext(c, "/api/v1/posts/"+req.PostUUID+"/retry"), &req, metadata)
	if err != nil {
		if businessflow.IsPostNotFound(err) || businessflow.IsPostAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Post not found", "POST_NOT_FOUND", nil)
		}
		if businessflow.IsPostNotRetryable(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Post has no failed platforms to retry", "POST_STATE_CONFLICT", nil)
		}

		log.Println("Post retry failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Post retry failed", "POST_RETRY_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Post retry scheduled successfully", result)
}

func (h *PostHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(utils.RequestIDHeader))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)

	return ctx
}

// clientMetadata captures the caller-side request attributes for audit logging
func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(utils.RequestIDHeader))
	return metadata
}

// callerIdentity pulls the authenticated team and user ids set by the
// identity middleware
func callerIdentity(c fiber.Ctx) (teamID, userID uint, ok bool) {
	teamID, tok := c.Locals("team_id").(uint)
	userID, uok := c.Locals("user_id").(uint)
	return teamID, userID, tok && uok
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "url":
		return err.Field() + " must be a valid URL"
	case "uuid4":
		return err.Field() + " must be a valid UUID"
	case "min":
		return err.Field() + " must have at least " + err.Param() + " entries or characters"
	case "max":
		return err.Field() + " must have at most " + err.Param() + " entries or characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	default:
		return err.Field() + " is invalid"
	}
}
