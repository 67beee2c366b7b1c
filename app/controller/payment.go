package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/factory"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/service"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/types"
)

type PaymentController struct {
	paymentService *service.PaymentService
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{
		Status:    "ok",
		Providers: c.paymentService.EnabledProviders(),
	})
}

func (c *PaymentController) InitializePayment(ctx echo.Context) error {
	req, err := types.NewInitializePaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.InitializePayment(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Initialize payment failed")
	}

	return ctx.JSON(http.StatusOK, mapper.InitializeResponse(item))
}

func (c *PaymentController) VerifyPayment(ctx echo.Context) error {
	req, err := types.NewVerifyPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.paymentService.VerifyPayment(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Verify payment failed")
	}

	return ctx.JSON(http.StatusOK, mapper.VerificationToProto(outcome))
}

func (c *PaymentController) FlutterwaveWebhook(ctx echo.Context) error {
	return c.handleWebhook(ctx, entity.ProviderFlutterwave)
}

func (c *PaymentController) PaystackWebhook(ctx echo.Context) error {
	return c.handleWebhook(ctx, entity.ProviderPaystack)
}

// handleWebhook answers 200 for events that were authenticated but cannot be
// applied, so providers stop redelivering them. Storage failures answer 500 so
// the provider retries.
func (c *PaymentController) handleWebhook(ctx echo.Context, providerCode string) error {
	req, err := types.NewWebhookRequestFromContext(ctx, providerCode)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, &types.WebhookResponse{Success: false, Message: "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, &types.WebhookResponse{Success: false, Message: err.Error()})
	}

	outcome, err := c.paymentService.HandleWebhook(ctx.Request().Context(), req)
	if err != nil {
		logger := factory.LoggerWithContext(c.logger, ctx).WithField("provider", providerCode)
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			return ctx.JSON(http.StatusUnauthorized, &types.WebhookResponse{Success: false, Message: "invalid signature"})
		case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrProviderUnsupported):
			return ctx.JSON(http.StatusBadRequest, &types.WebhookResponse{Success: false, Message: err.Error()})
		case errors.Is(err, service.ErrReconciliationAmbiguous),
			errors.Is(err, service.ErrOrderNotFound),
			errors.Is(err, service.ErrTransactionNotFound),
			errors.Is(err, service.ErrAmountMismatch):
			logger.WithError(err).Warn("Webhook accepted but not applied")
			return ctx.JSON(http.StatusOK, &types.WebhookResponse{Success: false, Message: err.Error()})
		default:
			logger.WithError(err).Error("Handle webhook failed")
			return ctx.JSON(http.StatusInternalServerError, &types.WebhookResponse{Success: false, Message: "internal server error"})
		}
	}

	return ctx.JSON(http.StatusOK, mapper.WebhookToProto(outcome))
}

func (c *PaymentController) InitiateRefund(ctx echo.Context) error {
	req, err := types.NewInitiateRefundRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.InitiateRefund(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Initiate refund failed")
	}

	return ctx.JSON(http.StatusCreated, &types.RefundResponse{Refund: mapper.RefundToProto(item)})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req, err := types.NewGetPaymentRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.GetReference())
	if err != nil {
		return c.writeServiceError(ctx, err, "Get payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentResponse{Payment: mapper.PaymentToProto(item)})
}

func (c *PaymentController) ListTransactions(ctx echo.Context) error {
	req, err := types.NewListTransactionsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.paymentService.ListTransactions(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "List transactions failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListTransactionsResponse{
		Transactions: mapper.TransactionsToProto(items),
		Limit:        req.GetLimit(),
		Offset:       req.GetOffset(),
	})
}

func (c *PaymentController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	status, message := ErrorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
	}
	return c.writeError(ctx, status, message)
}

// ErrorStatus maps service errors onto HTTP status codes and client messages.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrProviderUnsupported),
		errors.Is(err, service.ErrProviderUnavailable):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrPaymentNotRefundable):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrReconciliationAmbiguous),
		errors.Is(err, service.ErrRefundExceedsPayment):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrGatewayRejected):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, service.ErrTransientNetwork):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
