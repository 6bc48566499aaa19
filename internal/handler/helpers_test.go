package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"tiendapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteServiceError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not authenticated", service.ErrNotAuthenticated, http.StatusUnauthorized},
		{"sale not found", service.ErrSaleNotFound, http.StatusNotFound},
		{"empty cart", service.ErrEmptyCart, http.StatusBadRequest},
		{"store unavailable", service.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"store unavailable wrapped", fmt.Errorf("%w: connection failure", service.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"product not found", &service.ProductNotFoundError{ProductID: uuid.New()}, http.StatusNotFound},
		{"insufficient stock", &service.InsufficientStockError{ProductID: uuid.New(), Available: 1, Requested: 3}, http.StatusConflict},
		{"stock inconsistency", &service.StockInconsistencyError{ProductID: uuid.New(), Stock: 0, Delta: -2}, http.StatusConflict},
		{"unknown", errors.New("otra cosa"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)

			writeServiceError(c, tc.err)

			assert.Equal(t, tc.want, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["detail"])
		})
	}
}
