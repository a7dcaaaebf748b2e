package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSalesCounters(t *testing.T) {
	m := NewSales()
	m.SaleCreated()
	m.SaleCreated()
	m.SaleDeleted()
	m.SaleFailed("create", "EmptyCart")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.created))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.updated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("create", "EmptyCart")))
}

func TestHandler(t *testing.T) {
	m := NewSales()
	m.SaleFailed("delete", "SaleNotFound")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pharmacy_sale_failures_total{code="SaleNotFound",operation="delete"} 1`)
	assert.Contains(t, string(body), "pharmacy_sales_created_total 0")
}
