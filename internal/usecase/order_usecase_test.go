package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"smartshop/internal/domain/model"
	"smartshop/internal/usecase"
	"smartshop/internal/validator"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderUC(store *memStore, hooks usecase.OrderHooks, opts usecase.OrderOptions) *usecase.OrderUsecase {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return usecase.NewOrderUsecase(store, validator.NewOrderValidator(), hooks, fixedClock{testNow}, zerolog.Nop(), opts)
}

// =====================
// PlaceOrder
// =====================

func TestPlaceOrder_SubmittedPriceIsFrozen(t *testing.T) {
	store := newMemStore(phone())
	hooks := &hooksRecorder{}
	uc := newOrderUC(store, hooks, usecase.OrderOptions{})

	out, err := uc.PlaceOrder(context.Background(), 7, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 2, Price: dec("100.00")}},
		Delivery: delivery(),
	})
	require.NoError(t, err)

	assert.Equal(t, "ORD-20250314-0001", out.OrderCode)
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.True(t, out.Total.Equal(dec("200.00")), "total=%s", out.Total)
	assert.Equal(t, int64(7), out.UserID)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "Phone", out.Items[0].Name)
	assert.True(t, out.Items[0].Price.Equal(dec("100")))
	assert.True(t, out.Items[0].Subtotal.Equal(dec("200")))
	assert.NotZero(t, out.Items[0].ID)

	db := store.snapshot()
	require.Len(t, db.orders, 1)
	require.Len(t, db.items, 1)
	assert.Equal(t, out.ID, db.items[0].OrderID)
	require.Len(t, db.audits, 1)
	assert.Equal(t, model.AuditActionCreateOrder, db.audits[0].Action)
	assert.Equal(t, model.AuditActorUser, db.audits[0].ActorType)
	assert.Equal(t, `{"status":"PENDING"}`, db.audits[0].AfterJSON)

	assert.Equal(t, 1, hooks.count("placed"))
	assert.Equal(t, out.OrderCode, hooks.last().order.OrderCode)
}

func TestPlaceOrder_SequenceAndLineOrder(t *testing.T) {
	store := newMemStore(phone(), cable())
	uc := newOrderUC(store, nil, usecase.OrderOptions{})

	in := usecase.PlaceOrderInput{
		Items: []usecase.PlaceOrderItemInput{
			{ProductID: 2, Quantity: 3, Price: dec("15.50")},
			{ProductID: 1, Quantity: 1, Price: dec("999.99")},
		},
		Delivery: delivery(),
	}

	first, err := uc.PlaceOrder(context.Background(), 1, in)
	require.NoError(t, err)
	second, err := uc.PlaceOrder(context.Background(), 2, in)
	require.NoError(t, err)

	assert.Equal(t, "ORD-20250314-0001", first.OrderCode)
	assert.Equal(t, "ORD-20250314-0002", second.OrderCode)
	assert.Equal(t, "1046.49", first.Total.StringFixed(2))

	require.Len(t, first.Items, 2)
	assert.Equal(t, "Cable", first.Items[0].Name)
	assert.Equal(t, "Phone", first.Items[1].Name)
}

func TestPlaceOrder_DecimalTotalIsExact(t *testing.T) {
	store := newMemStore(phone())
	uc := newOrderUC(store, nil, usecase.OrderOptions{})

	// 0.1 * 3 が 0.30000000000000004 にならない
	out, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 3, Price: dec("0.10")}},
		Delivery: delivery(),
	})
	require.NoError(t, err)
	assert.Equal(t, "0.30", out.Total.StringFixed(2))
	assert.True(t, out.Total.Equal(dec("0.3")))
}

func TestPlaceOrder_CatalogPriceSource(t *testing.T) {
	store := newMemStore(phone())
	uc := newOrderUC(store, nil, usecase.OrderOptions{PriceSource: usecase.PriceSourceCatalog})

	out, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 2, Price: dec("1.00")}},
		Delivery: delivery(),
	})
	require.NoError(t, err)
	assert.Equal(t, "1999.98", out.Total.StringFixed(2))
}

func TestPlaceOrder_UnknownProduct_NothingPersisted(t *testing.T) {
	store := newMemStore(phone())
	hooks := &hooksRecorder{}
	uc := newOrderUC(store, hooks, usecase.OrderOptions{})

	_, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items: []usecase.PlaceOrderItemInput{
			{ProductID: 1, Quantity: 1, Price: dec("10")},
			{ProductID: 404, Quantity: 1, Price: dec("10")},
		},
		Delivery: delivery(),
	})
	assertStatus(t, err, http.StatusNotFound)
	assert.True(t, errors.Is(err, usecase.ErrNotFound))
	assertErrContains(t, err, "product 404 not found")

	db := store.snapshot()
	assert.Empty(t, db.orders)
	assert.Empty(t, db.items)
	assert.Empty(t, db.seq)
	assert.Empty(t, db.audits)
	assert.Equal(t, 0, hooks.count("placed"))
}

func TestPlaceOrder_TotalMismatch(t *testing.T) {
	store := newMemStore(phone())
	uc := newOrderUC(store, nil, usecase.OrderOptions{})

	_, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 2, Price: dec("100.00")}},
		Total:    decPtr("150.00"),
		Delivery: delivery(),
	})
	assertStatus(t, err, http.StatusBadRequest)
	assertErrContains(t, err, "total does not match items")
	assert.Empty(t, store.snapshot().orders)

	// 一致していれば通る
	out, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 2, Price: dec("100.00")}},
		Total:    decPtr("200"),
		Delivery: delivery(),
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250314-0001", out.OrderCode)
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	store := newMemStore(phone())
	uc := newOrderUC(store, nil, usecase.OrderOptions{})

	noEmail := delivery()
	noEmail.Email = ""

	tests := []struct {
		name string
		in   usecase.PlaceOrderInput
		want string
	}{
		{"empty cart", usecase.PlaceOrderInput{Delivery: delivery()}, "items is required"},
		{"zero quantity", usecase.PlaceOrderInput{
			Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 0, Price: dec("1")}},
			Delivery: delivery(),
		}, "items[0].quantity"},
		{"negative price", usecase.PlaceOrderInput{
			Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("-1")}},
			Delivery: delivery(),
		}, "items[0].price"},
		{"missing email", usecase.PlaceOrderInput{
			Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("1")}},
			Delivery: noEmail,
		}, "delivery.email is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.PlaceOrder(context.Background(), 1, tt.in)
			assertStatus(t, err, http.StatusBadRequest)
			assert.True(t, errors.Is(err, usecase.ErrValidation))
			assertErrContains(t, err, tt.want)
		})
	}
	assert.Empty(t, store.snapshot().orders)
}

func TestPlaceOrder_Unauthorized(t *testing.T) {
	uc := newOrderUC(newMemStore(phone()), nil, usecase.OrderOptions{})

	_, err := uc.PlaceOrder(context.Background(), 0, usecase.PlaceOrderInput{})
	assertStatus(t, err, http.StatusUnauthorized)
}

func TestPlaceOrder_DeliveryIsTrimmed(t *testing.T) {
	store := newMemStore(phone())
	uc := newOrderUC(store, nil, usecase.OrderOptions{})

	d := delivery()
	d.Name = "  Ana Pop  "
	d.Notes = "  leave at door "

	out, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("5")}},
		Delivery: d,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Pop", out.DeliveryName)
	assert.Equal(t, "leave at door", out.DeliveryNotes)
}

// =====================
// Order code
// =====================

func TestPlaceOrder_CodeSeedsFromExistingOrders(t *testing.T) {
	store := newMemStore(phone())
	for i := 1; i <= 5; i++ {
		store.seedOrder(model.Order{OrderCode: fmt.Sprintf("ORD-20250314-%04d", i), UserID: 9, Status: model.OrderStatusPending})
	}
	// 別の日の注文は数えない
	store.seedOrder(model.Order{OrderCode: "ORD-20250313-0001", UserID: 9, Status: model.OrderStatusPending})

	uc := newOrderUC(store, nil, usecase.OrderOptions{})
	out, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("5")}},
		Delivery: delivery(),
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250314-0006", out.OrderCode)
}

func TestPlaceOrder_CodeUsesConfiguredTimezone(t *testing.T) {
	store := newMemStore(phone())
	loc := time.FixedZone("EET", 2*60*60)
	late := time.Date(2025, 3, 14, 23, 30, 0, 0, time.UTC)

	uc := usecase.NewOrderUsecase(store, validator.NewOrderValidator(), nil, fixedClock{late}, zerolog.Nop(), usecase.OrderOptions{Location: loc})
	out, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("5")}},
		Delivery: delivery(),
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250315-0001", out.OrderCode)
}

func TestPlaceOrder_RetriesOnDuplicateCode(t *testing.T) {
	store := newMemStore(phone())
	store.duplicateCodeFailures = 2
	hooks := &hooksRecorder{}
	uc := newOrderUC(store, hooks, usecase.OrderOptions{MaxCodeAttempts: 3})

	out, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("5")}},
		Delivery: delivery(),
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-20250314-0001", out.OrderCode)
	assert.Equal(t, 3, store.txCount)
	assert.Len(t, store.snapshot().orders, 1)
	assert.Equal(t, 1, hooks.count("placed"))
}

func TestPlaceOrder_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore(phone())
	store.duplicateCodeFailures = 3
	hooks := &hooksRecorder{}
	uc := newOrderUC(store, hooks, usecase.OrderOptions{MaxCodeAttempts: 3})

	_, err := uc.PlaceOrder(context.Background(), 1, usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("5")}},
		Delivery: delivery(),
	})
	assertStatus(t, err, http.StatusConflict)
	assert.True(t, errors.Is(err, usecase.ErrConflict))
	assert.Empty(t, store.snapshot().orders)
	assert.Equal(t, 0, hooks.count("placed"))
}

func TestPlaceOrder_ConcurrentCodesAreUnique(t *testing.T) {
	store := newMemStore(phone())
	uc := newOrderUC(store, nil, usecase.OrderOptions{})

	const n = 30
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			out, err := uc.PlaceOrder(context.Background(), user, usecase.PlaceOrderInput{
				Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("5")}},
				Delivery: delivery(),
			})
			if assert.NoError(t, err) {
				codes <- out.OrderCode
			}
		}(int64(i + 1))
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for c := range codes {
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}
	assert.Len(t, seen, n)
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("ORD-20250314-%04d", i)])
	}
}

// =====================
// Queries
// =====================

func TestOrderQueries_OwnershipAndLookup(t *testing.T) {
	store := newMemStore(phone())
	uc := newOrderUC(store, nil, usecase.OrderOptions{})
	ctx := context.Background()

	in := usecase.PlaceOrderInput{
		Items:    []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1, Price: dec("5")}},
		Delivery: delivery(),
	}
	a1, err := uc.PlaceOrder(ctx, 1, in)
	require.NoError(t, err)
	a2, err := uc.PlaceOrder(ctx, 1, in)
	require.NoError(t, err)
	b1, err := uc.PlaceOrder(ctx, 2, in)
	require.NoError(t, err)

	list, err := uc.ListMyOrders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a2.ID, list[0].ID)
	assert.Equal(t, a1.ID, list[1].ID)
	require.Len(t, list[0].Items, 1)

	got, err := uc.GetMyOrderDetail(ctx, 1, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, a1.OrderCode, got.OrderCode)

	got, err = uc.GetMyOrderByCode(ctx, 2, " "+b1.OrderCode+" ")
	require.NoError(t, err)
	assert.Equal(t, b1.ID, got.ID)

	// 他人の注文は404
	_, err = uc.GetMyOrderDetail(ctx, 2, a1.ID)
	assertStatus(t, err, http.StatusNotFound)
	_, err = uc.GetMyOrderByCode(ctx, 1, b1.OrderCode)
	assertStatus(t, err, http.StatusNotFound)

	_, err = uc.GetMyOrderDetail(ctx, 1, 999)
	assertStatus(t, err, http.StatusNotFound)
	_, err = uc.GetMyOrderDetail(ctx, 1, 0)
	assertStatus(t, err, http.StatusBadRequest)
	_, err = uc.GetMyOrderByCode(ctx, 1, "  ")
	assertStatus(t, err, http.StatusBadRequest)
}
