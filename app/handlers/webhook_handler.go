package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/amirphl/Kage-Bunshin/app/dto"
	businessflow "github.com/amirphl/Kage-Bunshin/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// WebhookHandlerInterface defines the contract for webhook config handlers
type WebhookHandlerInterface interface {
	CreateWebhookConfig(c fiber.Ctx) error
	ListWebhookConfigs(c fiber.Ctx) error
	UpdateWebhookConfig(c fiber.Ctx) error
	DeleteWebhookConfig(c fiber.Ctx) error
	TestWebhook(c fiber.Ctx) error
	ListDeliveries(c fiber.Ctx) error
}

// WebhookHandler handles webhook configuration HTTP requests
type WebhookHandler struct {
	webhookFlow businessflow.WebhookConfigFlow
	validator   *validator.Validate
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookFlow businessflow.WebhookConfigFlow) *WebhookHandler {
	return &WebhookHandler{
		webhookFlow: webhookFlow,
		validator:   validator.New(),
	}
}

func (h *WebhookHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *WebhookHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// CreateWebhookConfig registers a new webhook endpoint for the team
func (h *WebhookHandler) CreateWebhookConfig(c fiber.Ctx) error {
	var req dto.CreateWebhookConfigRequest
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

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TeamID = teamID

	result, err := h.webhookFlow.CreateWebhookConfig(h.createRequestContext(c, "/api/v1/webhooks"), &req, metadata)
	if err != nil {
		if businessflow.IsWebhookURLInvalid(err) || businessflow.IsWebhookEventUnknown(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Webhook validation failed", "WEBHOOK_VALIDATION_FAILED", err.Error())
		}

		log.Println("Webhook config creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook config creation failed", "WEBHOOK_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Webhook config created successfully", result)
}

// ListWebhookConfigs returns every webhook endpoint registered for the team
func (h *WebhookHandler) ListWebhookConfigs(c fiber.Ctx) error {
	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}

	result, err := h.webhookFlow.ListWebhookConfigs(h.createRequestContext(c, "/api/v1/webhooks"), teamID)
	if err != nil {
		log.Println("Webhook config listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook config listing failed", "WEBHOOK_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Webhook configs retrieved successfully", result)
}

// UpdateWebhookConfig applies a partial update to a webhook endpoint
func (h *WebhookHandler) UpdateWebhookConfig(c fiber.Ctx) error {
	var req dto.UpdateWebhookConfigRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.ConfigUUID = c.Params("uuid")

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

	result, err := h.webhookFlow.UpdateWebhookConfig(h.createRequestContext(c, "/api/v1/webhooks/"+req.ConfigUUID), &req, metadata)
	if err != nil {
		if businessflow.IsWebhookConfigNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Webhook config not found", "WEBHOOK_NOT_FOUND", nil)
		}
		if businessflow.IsWebhookURLInvalid(err) || businessflow.IsWebhookEventUnknown(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Webhook validation failed", "WEBHOOK_VALIDATION_FAILED", err.Error())
		}

		log.Println("Webhook config update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook config update failed", "WEBHOOK_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Webhook config updated successfully", result)
}

// DeleteWebhookConfig removes a webhook endpoint
func (h *WebhookHandler) DeleteWebhookConfig(c fiber.Ctx) error {
	configUUID := c.Params("uuid")

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}

	err := h.webhookFlow.DeleteWebhookConfig(h.createRequestContext(c, "/api/v1/webhooks/"+configUUID), configUUID, teamID)
	if err != nil {
		if businessflow.IsWebhookConfigNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Webhook config not found", "WEBHOOK_NOT_FOUND", nil)
		}

		log.Println("Webhook config deletion failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook config deletion failed", "WEBHOOK_DELETE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Webhook config deleted successfully", nil)
}

// TestWebhook fires a synthetic event at one endpoint inline
func (h *WebhookHandler) TestWebhook(c fiber.Ctx) error {
	req := dto.TestWebhookRequest{ConfigUUID: c.Params("uuid")}

	if err := h.validator.Struct(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook config UUID", "VALIDATION_ERROR", nil)
	}

	metadata := clientMetadata(c)

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}
	req.TeamID = teamID

	// Test deliveries run inline with the full retry policy, so give them headroom
	ctx := createRequestContextWithTimeout(c, "/api/v1/webhooks/"+req.ConfigUUID+"/test", 3*time.Minute)

	result, err := h.webhookFlow.TestWebhook(ctx, &req, metadata)
	if err != nil {
		if businessflow.IsWebhookConfigNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Webhook config not found", "WEBHOOK_NOT_FOUND", nil)
		}

		log.Println("Webhook test failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook test failed", "WEBHOOK_TEST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Webhook test completed", result)
}

// ListDeliveries returns recorded delivery attempts for one endpoint
func (h *WebhookHandler) ListDeliveries(c fiber.Ctx) error {
	configUUID := c.Params("uuid")

	teamID, _, ok := callerIdentity(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Caller identity not found in context", "MISSING_IDENTITY", nil)
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	result, err := h.webhookFlow.ListDeliveries(h.createRequestContext(c, "/api/v1/webhooks/"+configUUID+"/deliveries"), configUUID, teamID, limit, offset)
	if err != nil {
		if businessflow.IsWebhookConfigNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Webhook config not found", "WEBHOOK_NOT_FOUND", nil)
		}

		log.Println("Webhook delivery listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Webhook delivery listing failed", "WEBHOOK_LOOKUP_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Webhook deliveries retrieved successfully", result)
}

func (h *WebhookHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}
