package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy/m/domain"
	"pharmacy/m/internal/metrics"
	"pharmacy/m/internal/sales"
	"pharmacy/m/internal/store"
	"pharmacy/m/internal/storetest"
)

const testSecret = "test-secret"

type testServer struct {
	db      *sqlx.DB
	handler *Handler
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := storetest.Open(t)
	m := metrics.NewSales()
	engine := sales.NewEngine(db, store.NewUsers(), store.NewDrugs(), store.NewSales(), sales.WithRecorder(m))
	h := New(db, engine, Options{Secret: testSecret, Metrics: m.Handler()})
	return &testServer{db: db, handler: h, router: h.Router()}
}

func (s *testServer) token(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := s.handler.generateToken(u.ID, u.Role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest))
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["error"]
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Dana", "email": "Dana@Pharmacy.test", "password": "s3cret", "role": "Cashier",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg authResponse
	decode(t, rec, &reg)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "dana@pharmacy.test", reg.User.Email)
	assert.Equal(t, "Cashier", reg.User.Role)

	rec = s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Dana", "email": "dana@pharmacy.test", "password": "other", "role": "Cashier",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "dana@pharmacy.test", "password": "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login authResponse
	decode(t, rec, &login)
	assert.Equal(t, reg.User.ID, login.User.ID)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "dana@pharmacy.test", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid email or password", errorMessage(t, rec))

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@pharmacy.test", "password": "s3cret"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Eve", "email": "eve@pharmacy.test", "password": "pw", "role": "Janitor",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/sales", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/sales", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	pharmacist := storetest.User(t, s.db, "phil", domain.RolePharmacist)
	cashier := storetest.User(t, s.db, "cass", domain.RoleCashier)
	drug := storetest.Drug(t, s.db, "Aspirin", "10.00", 5)

	body := saleRequest{Items: []saleItemRequest{{DrugID: drug.ID, Quantity: 1}}}
	rec := s.do(t, http.MethodPost, "/sales", s.token(t, pharmacist), body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, int64(5), storetest.Quantity(t, s.db, drug.ID))

	rec = s.do(t, http.MethodGet, "/sales", s.token(t, pharmacist), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/categories", s.token(t, cashier), categoryRequest{Name: "Vitamins"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSaleLifecycle(t *testing.T) {
	s := newTestServer(t)
	cashier := storetest.User(t, s.db, "cass", domain.RoleCashier)
	tok := s.token(t, cashier)
	drug := storetest.Drug(t, s.db, "Aspirin", "10.00", 5)

	rec := s.do(t, http.MethodPost, "/sales", tok, saleRequest{
		Customer: "Walk-in",
		Items:    []saleItemRequest{{DrugID: drug.ID, Quantity: 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created saleResponse
	decode(t, rec, &created)
	assert.Equal(t, cashier.ID, created.CashierID)
	assert.Equal(t, "30.00", created.TotalAmount)
	require.Len(t, created.Items, 1)
	assert.Equal(t, "10.00", created.Items[0].PricePerUnit)
	assert.Equal(t, "30.00", created.Items[0].Subtotal)
	assert.Equal(t, int64(2), storetest.Quantity(t, s.db, drug.ID))

	rec = s.do(t, http.MethodGet, "/sales/"+created.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched saleResponse
	decode(t, rec, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	require.NotNil(t, fetched.Cashier)
	assert.Equal(t, "cass", fetched.Cashier.Name)
	assert.Equal(t, "Aspirin", fetched.Items[0].DrugName)

	rec = s.do(t, http.MethodPut, "/sales/"+created.ID.String(), tok, saleRequest{
		Customer: "Regular",
		Items:    []saleItemRequest{{DrugID: drug.ID, Quantity: 5}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated saleResponse
	decode(t, rec, &updated)
	assert.Equal(t, "50.00", updated.TotalAmount)
	assert.Equal(t, "Regular", updated.Customer)
	assert.Equal(t, int64(0), storetest.Quantity(t, s.db, drug.ID))

	rec = s.do(t, http.MethodGet, "/sales", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []saleResponse
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = s.do(t, http.MethodDelete, "/sales/"+created.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Sale deleted successfully"}`, rec.Body.String())
	assert.Equal(t, int64(5), storetest.Quantity(t, s.db, drug.ID))

	rec = s.do(t, http.MethodGet, "/sales/"+created.ID.String(), tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaleErrorMapping(t *testing.T) {
	s := newTestServer(t)
	cashier := storetest.User(t, s.db, "cass", domain.RoleCashier)
	tok := s.token(t, cashier)
	drug := storetest.Drug(t, s.db, "Aspirin", "10.00", 2)

	tests := []struct {
		name   string
		body   saleRequest
		status int
	}{
		{"empty cart", saleRequest{}, http.StatusBadRequest},
		{"zero quantity", saleRequest{Items: []saleItemRequest{{DrugID: drug.ID, Quantity: 0}}}, http.StatusBadRequest},
		{"unknown drug", saleRequest{Items: []saleItemRequest{{DrugID: uuid.New(), Quantity: 1}}}, http.StatusNotFound},
		{"unknown cashier", saleRequest{CashierID: uuid.New(), Items: []saleItemRequest{{DrugID: drug.ID, Quantity: 1}}}, http.StatusNotFound},
		{"insufficient quantity", saleRequest{Items: []saleItemRequest{{DrugID: drug.ID, Quantity: 3}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/sales", tok, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, errorMessage(t, rec))
		})
	}

	assert.Equal(t, int64(2), storetest.Quantity(t, s.db, drug.ID))
	n, items := storetest.CountSales(t, s.db)
	assert.Zero(t, n)
	assert.Zero(t, items)

	rec := s.do(t, http.MethodDelete, "/sales/"+uuid.NewString(), tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/sales/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaleRejectsUnknownFields(t *testing.T) {
	s := newTestServer(t)
	cashier := storetest.User(t, s.db, "cass", domain.RoleCashier)
	rec := s.do(t, http.MethodPost, "/sales", s.token(t, cashier), map[string]interface{}{"discount": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDrugCatalog(t *testing.T) {
	s := newTestServer(t)
	admin := storetest.User(t, s.db, "ada", domain.RoleAdmin)
	tok := s.token(t, admin)

	rec := s.do(t, http.MethodPost, "/categories", tok, categoryRequest{Name: "Analgesics"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat domain.Category
	decode(t, rec, &cat)

	rec = s.do(t, http.MethodPost, "/categories", tok, categoryRequest{Name: "Analgesics"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	create := map[string]interface{}{
		"name": "Ibuprofen", "description": "200mg", "price": "4.5", "quantity": 12, "category_id": cat.ID,
	}
	rec = s.do(t, http.MethodPost, "/drugs", tok, create)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var drug drugResponse
	decode(t, rec, &drug)
	assert.Equal(t, "4.50", drug.Price)
	assert.Equal(t, "Analgesics", drug.Category)

	rec = s.do(t, http.MethodPost, "/drugs", tok, create)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/drugs", tok, map[string]interface{}{
		"name": "Free", "price": "0", "quantity": 1, "category_id": cat.ID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/drugs", tok, map[string]interface{}{
		"name": "Orphan", "price": "1.00", "quantity": 1, "category_id": uuid.New(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	create["price"] = "5.25"
	create["quantity"] = 20
	rec = s.do(t, http.MethodPut, "/drugs/"+drug.ID.String(), tok, create)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/drugs/"+drug.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &drug)
	assert.Equal(t, "5.25", drug.Price)
	assert.Equal(t, int64(20), drug.Quantity)

	rec = s.do(t, http.MethodGet, "/drugs", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var drugs []drugResponse
	decode(t, rec, &drugs)
	assert.Len(t, drugs, 1)

	rec = s.do(t, http.MethodDelete, "/drugs/"+drug.ID.String(), tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/drugs/"+drug.ID.String(), tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	cashier := storetest.User(t, s.db, "cass", domain.RoleCashier)
	drug := storetest.Drug(t, s.db, "Aspirin", "10.00", 1)

	rec := s.do(t, http.MethodPost, "/sales", s.token(t, cashier), saleRequest{
		Items: []saleItemRequest{{DrugID: drug.ID, Quantity: 2}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pharmacy_sale_failures_total{code="InsufficientQuantity",operation="create"} 1`)
}

func TestResetPassword(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Dana", "email": "dana@pharmacy.test", "password": "old-pass", "role": "Cashier",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg authResponse
	decode(t, rec, &reg)

	rec = s.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{"new_password": "new-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/reset-password", reg.Token, map[string]string{"new_password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/reset-password", reg.Token, map[string]string{"new_password": "new-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"password updated"}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "dana@pharmacy.test", "password": "old-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "dana@pharmacy.test", "password": "new-pass"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserManagement(t *testing.T) {
	s := newTestServer(t)
	admin := storetest.User(t, s.db, "ada", domain.RoleAdmin)
	cashier := storetest.User(t, s.db, "cass", domain.RoleCashier)
	adminTok := s.token(t, admin)
	cashierTok := s.token(t, cashier)

	rec := s.do(t, http.MethodGet, "/users", cashierTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []userDetailResponse
	decode(t, rec, &list)
	assert.Len(t, list, 2)

	rec = s.do(t, http.MethodGet, "/users/"+cashier.ID.String(), cashierTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	update := userUpdateRequest{Name: "Cass B.", Email: "cass.b@pharmacy.test", Role: "Pharmacist"}
	rec = s.do(t, http.MethodPut, "/users/"+cashier.ID.String(), cashierTok, update)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/users/"+cashier.ID.String(), adminTok, update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated userDetailResponse
	decode(t, rec, &updated)
	assert.Equal(t, "Cass B.", updated.Name)
	assert.Equal(t, "Pharmacist", updated.Role)

	rec = s.do(t, http.MethodPut, "/users/"+cashier.ID.String(), adminTok,
		userUpdateRequest{Name: "Cass", Email: admin.Email, Role: "Cashier"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/users/"+cashier.ID.String(), adminTok,
		userUpdateRequest{Name: "Cass", Email: "cass@pharmacy.test", Role: "Owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, "/users/"+cashier.ID.String(), adminTok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/users/"+cashier.ID.String(), adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodDelete, "/users/"+cashier.ID.String(), adminTok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategoryManagement(t *testing.T) {
	s := newTestServer(t)
	pharmacist := storetest.User(t, s.db, "phil", domain.RolePharmacist)
	tok := s.token(t, pharmacist)
	drug := storetest.Drug(t, s.db, "Aspirin", "1.00", 3)

	rec := s.do(t, http.MethodPost, "/categories", tok, categoryRequest{Name: "Vitamins"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cat domain.Category
	decode(t, rec, &cat)

	rec = s.do(t, http.MethodPut, "/categories/"+cat.ID.String(), tok, categoryRequest{Name: "Supplements"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/categories/"+cat.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &cat)
	assert.Equal(t, "Supplements", cat.Name)

	rec = s.do(t, http.MethodPut, "/categories/"+cat.ID.String(), tok, categoryRequest{Name: "Aspirin-category"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodDelete, "/categories/"+drug.CategoryID.String(), tok, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodDelete, "/categories/"+cat.ID.String(), tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/categories/"+cat.ID.String(), tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDrugWritesAreAdminOnly(t *testing.T) {
	s := newTestServer(t)
	pharmacist := storetest.User(t, s.db, "phil", domain.RolePharmacist)
	tok := s.token(t, pharmacist)
	drug := storetest.Drug(t, s.db, "Aspirin", "1.00", 3)

	rec := s.do(t, http.MethodPost, "/drugs", tok, map[string]interface{}{
		"name": "Ibuprofen", "price": "2.00", "quantity": 1, "category_id": drug.CategoryID,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, "/drugs/"+drug.ID.String(), tok, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/drugs/"+drug.ID.String(), tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
