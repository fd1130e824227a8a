package validator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"smartshop/internal/usecase"
)

var (
	// 入力が不正
	ErrInvalidInput = errors.New("invalid input")
)

const (
	maxOrderLines   = 100
	maxFieldLength  = 255
	maxNotesLength  = 1000
	maxLineQuantity = 10000
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type orderValidator struct{}

// Usecaseは interface を依存注入
func NewOrderValidator() usecase.OrderValidator {
	return &orderValidator{}
}

// 注文確定の入力を検証
func (v *orderValidator) ValidatePlaceOrder(ctx context.Context, in usecase.PlaceOrderInput) error {
	// 明細
	if len(in.Items) == 0 {
		return invalid("items is required")
	}
	if len(in.Items) > maxOrderLines {
		return invalid("too many items")
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 {
			return invalid(fmt.Sprintf("items[%d].product_id is invalid", i))
		}
		if it.Quantity <= 0 || it.Quantity > maxLineQuantity {
			return invalid(fmt.Sprintf("items[%d].quantity is invalid", i))
		}
		// 0以上、小数2桁まで
		if it.Price.IsNegative() || !it.Price.Equal(it.Price.Round(2)) {
			return invalid(fmt.Sprintf("items[%d].price is invalid", i))
		}
	}

	if in.Total != nil && (in.Total.IsNegative() || !in.Total.Equal(in.Total.Round(2))) {
		return invalid("total is invalid")
	}

	// 配送先
	d := in.Delivery
	required := []struct {
		name  string
		value string
	}{
		{"delivery.name", d.Name},
		{"delivery.email", d.Email},
		{"delivery.phone", d.Phone},
		{"delivery.address", d.Address},
		{"delivery.city", d.City},
		{"delivery.country", d.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return invalid(f.name + " is required")
		}
	}

	optional := []struct {
		name  string
		value string
	}{
		{"delivery.county", d.County},
		{"delivery.postal_code", d.PostalCode},
	}
	for _, f := range append(required, optional...) {
		if utf8.RuneCountInString(strings.TrimSpace(f.value)) > maxFieldLength {
			return invalid(f.name + " is too long")
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.Notes)) > maxNotesLength {
		return invalid("delivery.notes is too long")
	}

	// email形式
	if !isEmailLike(strings.TrimSpace(d.Email)) {
		return invalid("delivery.email is invalid")
	}

	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	return emailRe.MatchString(s)
}
