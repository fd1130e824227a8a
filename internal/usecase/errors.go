package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	//400 入力不正・未知の商品など
	ErrValidation = errors.New("validation error")
	//404 存在しない/他人の注文
	ErrNotFound = errors.New("not found")
	//決済ゲートウェイの失敗
	ErrGateway = errors.New("payment gateway error")
	//409 採番の競合がリトライでも解消しなかった
	ErrConflict = errors.New("conflict")
	//401
	ErrUnauthorized = errors.New("unauthorized")
	//500
	ErrInternal = errors.New("internal error")
)

type HTTPError struct {
	Status  int
	Message string
	Kind    error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Kind
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Kind:    kindForStatus(status),
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func validationError(message string) error {
	return &HTTPError{Status: http.StatusBadRequest, Message: message, Kind: ErrValidation}
}

func notFoundError(message string) error {
	return &HTTPError{Status: http.StatusNotFound, Message: message, Kind: ErrNotFound}
}

func gatewayError(status int, cause error) error {
	return &HTTPError{Status: status, Message: "payment gateway error: " + cause.Error(), Kind: ErrGateway}
}

func dbError() error {
	return &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Kind: ErrInternal}
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusBadGateway:
		return ErrGateway
	default:
		return ErrInternal
	}
}
