package api

import (
	"errors"
	"net/http"

	"roombook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorBody struct {
	Error              string   `json:"error"`
	Code               string   `json:"code"`
	Stage              string   `json:"stage,omitempty"`
	HoldID             string   `json:"hold_id,omitempty"`
	ReservationID      string   `json:"reservation_id,omitempty"`
	CalendarEventIDs   []string `json:"calendar_event_ids,omitempty"`
	CompensationQueued *bool    `json:"compensation_queued,omitempty"`
}

var errorTable = []struct {
	target error
	http   int
	grpc   codes.Code
	code   string
}{
	// PartialFailure comes first: it wraps the cause of the failed stage, which
	// may itself match a later row.
	{domain.ErrPartialFailure, http.StatusBadGateway, codes.DataLoss, "partial_failure"},
	{domain.ErrInvalidWindow, http.StatusBadRequest, codes.InvalidArgument, "invalid_window"},
	{domain.ErrInvalidResource, http.StatusBadRequest, codes.InvalidArgument, "invalid_resource"},
	{domain.ErrHoldNotFound, http.StatusNotFound, codes.NotFound, "hold_not_found"},
	{domain.ErrNotFound, http.StatusNotFound, codes.NotFound, "not_found"},
	{domain.ErrHoldExpired, http.StatusConflict, codes.FailedPrecondition, "hold_expired"},
	{domain.ErrResourceBusy, http.StatusConflict, codes.Aborted, "resource_busy"},
	{domain.ErrIdempotencyConflict, http.StatusConflict, codes.AlreadyExists, "idempotency_conflict"},
	{domain.ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition, "invalid_transition"},
	{domain.ErrConflict, http.StatusConflict, codes.AlreadyExists, "conflict"},
	{domain.ErrPaymentIncomplete, http.StatusPaymentRequired, codes.FailedPrecondition, "payment_incomplete"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, codes.Unavailable, "store_unavailable"},
}

func classify(err error) (int, codes.Code, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.http, e.grpc, e.code
		}
	}
	return http.StatusInternalServerError, codes.Internal, "internal"
}

func errorResponse(err error) (int, errorBody) {
	httpStatus, _, code := classify(err)
	body := errorBody{Error: err.Error(), Code: code}
	if httpStatus == http.StatusInternalServerError {
		body.Error = "internal error"
	}

	var pf *domain.PartialFailureError
	if errors.As(err, &pf) {
		body.Stage = pf.Stage
		body.HoldID = pf.HoldID
		body.ReservationID = pf.ReservationID
		body.CalendarEventIDs = pf.CalendarEventIDs
		queued := pf.CompensationQueued
		body.CompensationQueued = &queued
	}
	return httpStatus, body
}

func grpcError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	_, code, _ := classify(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
