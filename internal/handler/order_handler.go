package handler

import (
	"net/http"
	"strconv"

	"smartshop/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	uc *usecase.OrderUsecase
}

func NewOrderHandler(uc *usecase.OrderUsecase) *OrderHandler {
	return &OrderHandler{uc: uc}
}

type OrderItemRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderCreateRequest struct {
	Items []OrderItemRequest `json:"items"`
	Total *decimal.Decimal   `json:"total"`

	DeliveryName       string `json:"delivery_name"`
	DeliveryEmail      string `json:"delivery_email"`
	DeliveryPhone      string `json:"delivery_phone"`
	DeliveryAddress    string `json:"delivery_address"`
	DeliveryCity       string `json:"delivery_city"`
	DeliveryCounty     string `json:"delivery_county"`
	DeliveryPostalCode string `json:"delivery_postal_code"`
	DeliveryCountry    string `json:"delivery_country"`
	DeliveryNotes      string `json:"delivery_notes"`
}

// auth/limitはルート登録側で付ける
func (h *OrderHandler) RegisterRoutes(g *echo.Group, createLimiter echo.MiddlewareFunc) {
	g.POST("", h.create, createLimiter)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.GET("/code/:code", h.byCode)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	items := make([]usecase.PlaceOrderItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, usecase.PlaceOrderItemInput{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), userID, usecase.PlaceOrderInput{
		Items: items,
		Total: req.Total,
		Delivery: usecase.DeliveryInput{
			Name:       req.DeliveryName,
			Email:      req.DeliveryEmail,
			Phone:      req.DeliveryPhone,
			Address:    req.DeliveryAddress,
			City:       req.DeliveryCity,
			County:     req.DeliveryCounty,
			PostalCode: req.DeliveryPostalCode,
			Country:    req.DeliveryCountry,
			Notes:      req.DeliveryNotes,
		},
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.ListMyOrders(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.GetMyOrderDetail(c.Request().Context(), userID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) byCode(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.GetMyOrderByCode(c.Request().Context(), userID, c.Param("code"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
