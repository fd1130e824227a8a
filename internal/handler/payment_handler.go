package handler

import (
	"io"
	"net/http"

	"smartshop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// webhook本文の上限
const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type PaymentIntentCreateRequest struct {
	Amount   *decimal.Decimal `json:"amount"`
	Currency string           `json:"currency"`
	OrderID  *int64           `json:"order_id"`
}

type ReconcileResponse struct {
	Message string `json:"message"`
	Result  string `json:"result"`
}

// webhookだけ署名で守る。それ以外はログインしたユーザー本人
func (h *PaymentHandler) RegisterRoutes(g *echo.Group, auth echo.MiddlewareFunc) {
	g.POST("/create-payment-intent", h.createIntent, auth)
	g.POST("/success", h.success, auth)
	g.POST("/failure", h.failure, auth)
	g.POST("/webhook", h.webhook)
}

func (h *PaymentHandler) createIntent(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req PaymentIntentCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	idemKey := c.Request().Header.Get("X-Idempotency-Key")

	out, err := h.uc.CreatePaymentIntent(c.Request().Context(), userID, usecase.CreatePaymentIntentInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		OrderID:        req.OrderID,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) success(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, err := h.uc.HandlePaymentSuccess(c.Request().Context(), userID, intentIDParam(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ReconcileResponse{Message: "ok", Result: string(res)})
}

func (h *PaymentHandler) failure(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	res, err := h.uc.HandlePaymentFailure(c.Request().Context(), userID, intentIDParam(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ReconcileResponse{Message: "ok", Result: string(res)})
}

func (h *PaymentHandler) webhook(c echo.Context) error {
	//署名は生のbodyに対して検証するのでBindしない
	payload, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	res, err := h.uc.HandleWebhook(c.Request().Context(), payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ReconcileResponse{Message: "ok", Result: string(res)})
}

func intentIDParam(c echo.Context) string {
	if v := c.QueryParam("paymentIntentId"); v != "" {
		return v
	}
	return c.QueryParam("payment_intent_id")
}
