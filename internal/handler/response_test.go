package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ridedispatch/internal/repository"
	"ridedispatch/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidPickupLocation, http.StatusBadRequest},
		{service.ErrInvalidScore, http.StatusBadRequest},
		{service.ErrRideNotFound, http.StatusNotFound},
		{service.ErrPromoExhausted, http.StatusNotFound},
		{repository.ErrNotFound, http.StatusNotFound},
		{service.ErrRideNotRequested, http.StatusConflict},
		{service.ErrDriverHasActiveRide, http.StatusConflict},
		{service.ErrDriverUnavailable, http.StatusConflict},
		{service.ErrPromoAlreadyUsed, http.StatusConflict},
		{service.ErrAlreadyRated, http.StatusConflict},
		{service.ErrAlreadyPaid, http.StatusConflict},
		{fmt.Errorf("insert: %w", repository.ErrDuplicate), http.StatusConflict},
		{fmt.Errorf("%w: minimum ride amount is 20.00", service.ErrPromoMinimumNotMet), http.StatusUnprocessableEntity},
		{service.ErrNotRideParticipant, http.StatusForbidden},
		{service.ErrNotRideRider, http.StatusForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body.Error != "internal server error" {
		t.Errorf("expected generic message, got %q", body.Error)
	}
	if len(c.Errors) != 1 {
		t.Errorf("expected the error to be recorded on the context, got %d", len(c.Errors))
	}
}

func TestRespondError_ExposesDomainErrors(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, service.ErrRideCannotBeCancelled)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var body ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error != service.ErrRideCannotBeCancelled.Error() {
		t.Errorf("unexpected message %q", body.Error)
	}
}
