package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fastmart-backend/api/middleware"
	"github.com/angelmondragon/fastmart-backend/internal/auth"
	"github.com/angelmondragon/fastmart-backend/internal/cart"
	"github.com/angelmondragon/fastmart-backend/internal/catalog"
	"github.com/angelmondragon/fastmart-backend/internal/inventory"
	"github.com/angelmondragon/fastmart-backend/internal/users"
	"github.com/angelmondragon/fastmart-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/fastmart-backend/pkg/errors"
	"github.com/angelmondragon/fastmart-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("error"), Output: io.Discard})
}

type stubCart struct {
	cart.Service
	addErr    error
	gotUser   uuid.UUID
	gotItem   int64
	gotProd   int64
	gotQty    int
	removed   bool
	cleared   bool
	updateErr error
}

func (s *stubCart) AddItem(_ context.Context, userID uuid.UUID, productID int64, qty int) (*cart.ItemDTO, error) {
	s.gotUser, s.gotProd, s.gotQty = userID, productID, qty
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &cart.ItemDTO{ID: 11, UserID: userID, ProductID: productID, Quantity: qty}, nil
}

func (s *stubCart) UpdateItem(_ context.Context, userID uuid.UUID, itemID, productID int64, qty int) (*cart.ItemDTO, error) {
	s.gotUser, s.gotItem, s.gotProd, s.gotQty = userID, itemID, productID, qty
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &cart.ItemDTO{ID: itemID, UserID: userID, ProductID: productID, Quantity: qty}, nil
}

func (s *stubCart) RemoveItem(_ context.Context, userID uuid.UUID, itemID int64) error {
	s.gotUser, s.gotItem, s.removed = userID, itemID, true
	return nil
}

func (s *stubCart) ListItems(_ context.Context, userID uuid.UUID) ([]cart.ItemDTO, error) {
	s.gotUser = userID
	return []cart.ItemDTO{{ID: 1, UserID: userID, ProductID: 2, Quantity: 3}}, nil
}

func (s *stubCart) Clear(_ context.Context, userID uuid.UUID) error {
	s.gotUser, s.cleared = userID, true
	return nil
}

type stubCatalog struct {
	catalog.Service
	gotSkip, gotLimit int
	gotQuery          string
	gotActor          catalog.Actor
	gotInput          catalog.ProductInput
	gotID             int64
}

func (s *stubCatalog) ListProducts(_ context.Context, skip, limit int) ([]catalog.ProductDTO, error) {
	s.gotSkip, s.gotLimit = skip, limit
	return []catalog.ProductDTO{}, nil
}

func (s *stubCatalog) SearchProducts(_ context.Context, q string, skip, limit int) ([]catalog.ProductDTO, error) {
	s.gotQuery, s.gotSkip, s.gotLimit = q, skip, limit
	return []catalog.ProductDTO{}, nil
}

func (s *stubCatalog) GetProduct(_ context.Context, id int64) (*catalog.ProductDTO, error) {
	if id == 404 {
		return nil, catalog.ErrProductNotFound
	}
	return &catalog.ProductDTO{ID: id, Name: "Widget"}, nil
}

func (s *stubCatalog) CreateProduct(_ context.Context, actor catalog.Actor, in catalog.ProductInput) (*catalog.ProductDTO, error) {
	s.gotActor, s.gotInput = actor, in
	return &catalog.ProductDTO{ID: 5, Name: in.Name, Price: in.Price, Stock: in.Stock}, nil
}

func (s *stubCatalog) UpdateProduct(_ context.Context, actor catalog.Actor, id int64, in catalog.ProductInput) (*catalog.ProductDTO, error) {
	s.gotActor, s.gotID, s.gotInput = actor, id, in
	return &catalog.ProductDTO{ID: id, Name: in.Name}, nil
}

func (s *stubCatalog) DeleteProduct(_ context.Context, actor catalog.Actor, id int64) error {
	s.gotActor, s.gotID = actor, id
	return nil
}

// serve routes the request through chi so path params resolve, with the
// caller identity already in context.
func serve(method, pattern, target, body string, userID uuid.UUID, isAdmin bool, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	ctx := req.Context()
	if userID != uuid.Nil {
		ctx = middleware.WithUserID(ctx, userID.String())
	}
	ctx = middleware.WithAdmin(ctx, isAdmin)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestCartAddPassesCallerAndBody(t *testing.T) {
	svc := &stubCart{}
	user := uuid.New()
	rec := serve(http.MethodPost, "/cart", "/cart", `{"product_id":3,"quantity":2}`, user, false, CartAdd(svc, testLogger()))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, user, svc.gotUser)
	assert.Equal(t, int64(3), svc.gotProd)
	assert.Equal(t, 2, svc.gotQty)
}

func TestCartAddSchemaFailures(t *testing.T) {
	cases := map[string]string{
		"missing quantity": `{"product_id":3}`,
		"missing product":  `{"quantity":1}`,
		"unknown field":    `{"product_id":3,"quantity":1,"price":1}`,
		"malformed":        `{"product_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubCart{}
			rec := serve(http.MethodPost, "/cart", "/cart", body, uuid.New(), false, CartAdd(svc, testLogger()))
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Equal(t, int64(0), svc.gotProd)
		})
	}
}

func TestCartAddZeroQuantityReachesService(t *testing.T) {
	svc := &stubCart{addErr: pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")}
	rec := serve(http.MethodPost, "/cart", "/cart", `{"product_id":3,"quantity":0}`, uuid.New(), false, CartAdd(svc, testLogger()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "quantity must be positive")
}

func TestCartAddInsufficientStock(t *testing.T) {
	svc := &stubCart{addErr: inventory.ErrInsufficientStock}
	rec := serve(http.MethodPost, "/cart", "/cart", `{"product_id":3,"quantity":50}`, uuid.New(), false, CartAdd(svc, testLogger()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock")
}

func TestCartRequiresIdentity(t *testing.T) {
	svc := &stubCart{}
	rec := serve(http.MethodGet, "/cart", "/cart", "", uuid.Nil, false, CartList(svc, testLogger()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartUpdateRemoveClear(t *testing.T) {
	svc := &stubCart{}
	user := uuid.New()
	logg := testLogger()

	rec := serve(http.MethodPut, "/cart/{id}", "/cart/9", `{"product_id":4,"quantity":5}`, user, false, CartUpdate(svc, logg))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(9), svc.gotItem)
	assert.Equal(t, int64(4), svc.gotProd)
	assert.Equal(t, 5, svc.gotQty)

	rec = serve(http.MethodPut, "/cart/{id}", "/cart/9", `{"quantity":1}`, user, false, CartUpdate(svc, logg))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), svc.gotProd)

	svc.updateErr = cart.ErrItemNotFound
	rec = serve(http.MethodPut, "/cart/{id}", "/cart/9", `{"quantity":1}`, user, false, CartUpdate(svc, logg))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodDelete, "/cart/{id}", "/cart/abc", "", user, false, CartRemove(svc, logg))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, svc.removed)

	rec = serve(http.MethodDelete, "/cart/{id}", "/cart/9", "", user, false, CartRemove(svc, logg))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.removed)

	rec = serve(http.MethodDelete, "/cart", "/cart", "", user, false, CartClear(svc, logg))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.cleared)
}

func TestProductsListPaging(t *testing.T) {
	svc := &stubCatalog{}
	logg := testLogger()

	rec := serve(http.MethodGet, "/products", "/products", "", uuid.Nil, false, ProductsList(svc, logg))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, svc.gotSkip)
	assert.Equal(t, 10, svc.gotLimit)

	rec = serve(http.MethodGet, "/products", "/products?skip=20&limit=5", "", uuid.Nil, false, ProductsList(svc, logg))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, svc.gotSkip)
	assert.Equal(t, 5, svc.gotLimit)

	for _, q := range []string{"skip=-1", "limit=0", "limit=ten"} {
		rec = serve(http.MethodGet, "/products", "/products?"+q, "", uuid.Nil, false, ProductsList(svc, logg))
		assert.Equalf(t, http.StatusUnprocessableEntity, rec.Code, "query %s", q)
	}
}

func TestProductsSearchTrimsQuery(t *testing.T) {
	svc := &stubCatalog{}
	target := "/products/search?q=" + url.QueryEscape("  wid  ")
	rec := serve(http.MethodGet, "/products/search", target, "", uuid.Nil, false, ProductsSearch(svc, testLogger()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wid", svc.gotQuery)
}

func TestProductsSearchKeepsLongCJKQueryValid(t *testing.T) {
	svc := &stubCatalog{}
	target := "/products/search?q=" + url.QueryEscape(strings.Repeat("商", 200))
	rec := serve(http.MethodGet, "/products/search", target, "", uuid.Nil, false, ProductsSearch(svc, testLogger()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, utf8.ValidString(svc.gotQuery))
	assert.Equal(t, maxSearchQuery, utf8.RuneCountInString(svc.gotQuery))
}

func TestProductGet(t *testing.T) {
	svc := &stubCatalog{}
	rec := serve(http.MethodGet, "/products/{id}", "/products/7", "", uuid.Nil, false, ProductGet(svc, testLogger()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":7`)

	rec = serve(http.MethodGet, "/products/{id}", "/products/404", "", uuid.Nil, false, ProductGet(svc, testLogger()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProductWritesCarryActor(t *testing.T) {
	svc := &stubCatalog{}
	user := uuid.New()
	logg := testLogger()
	body := `{"name":"Widget","description":"blue","price":"12.50","stock":4}`

	rec := serve(http.MethodPost, "/products", "/products", body, user, true, ProductCreate(svc, logg))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, catalog.Actor{UserID: user, IsAdmin: true}, svc.gotActor)
	assert.True(t, svc.gotInput.Price.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, 4, svc.gotInput.Stock)
	require.NotNil(t, svc.gotInput.Description)
	assert.Equal(t, "blue", *svc.gotInput.Description)

	rec = serve(http.MethodPut, "/products/{id}", "/products/3", body, user, false, ProductUpdate(svc, logg))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), svc.gotID)
	assert.False(t, svc.gotActor.IsAdmin)

	rec = serve(http.MethodDelete, "/products/{id}", "/products/3", "", user, true, ProductDelete(svc, logg))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(http.MethodPost, "/products", "/products", `{"name":"Widget","stock":4}`, user, true, ProductCreate(svc, logg))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = serve(http.MethodPost, "/products", "/products", body, uuid.Nil, true, ProductCreate(svc, logg))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubAuth struct {
	gotLogin auth.LoginRequest
	meErr    error
}

func (s *stubAuth) Login(_ context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.gotLogin = req
	return &auth.LoginResponse{AccessToken: "tok", TokenType: auth.TokenTypeBearer, ExpiresIn: 1800}, nil
}

func (s *stubAuth) Me(_ context.Context, id uuid.UUID) (*users.UserDTO, error) {
	if s.meErr != nil {
		return nil, s.meErr
	}
	return &users.UserDTO{ID: id, Email: "me@example.com"}, nil
}

func TestAuthTokenAcceptsForm(t *testing.T) {
	svc := &stubAuth{}
	form := url.Values{"username": {"shopper@example.com"}, "password": {"secret-pass"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	AuthToken(svc, testLogger()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "shopper@example.com", svc.gotLogin.Email)
	assert.Contains(t, rec.Body.String(), `"token_type":"bearer"`)

	req = httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"a@b.co"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	AuthToken(svc, testLogger()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAuthMe(t *testing.T) {
	svc := &stubAuth{}
	user := uuid.New()
	rec := serve(http.MethodGet, "/auth/me", "/auth/me", "", user, false, AuthMe(svc, testLogger()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), user.String())

	svc.meErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "user inactive")
	rec = serve(http.MethodGet, "/auth/me", "/auth/me", "", user, false, AuthMe(svc, testLogger()))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type stubRegister struct{ err error }

func (s stubRegister) Register(_ context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &users.UserDTO{ID: uuid.New(), Email: req.Email}, nil
}

func TestAuthRegister(t *testing.T) {
	rec := serve(http.MethodPost, "/auth/register", "/auth/register", `{"email":"new@example.com","password":"long-enough"}`, uuid.Nil, false, AuthRegister(stubRegister{}, testLogger()))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = serve(http.MethodPost, "/auth/register", "/auth/register", `{"email":"new@example.com","password":"short"}`, uuid.Nil, false, AuthRegister(stubRegister{}, testLogger()))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	taken := stubRegister{err: pkgerrors.New(pkgerrors.CodeValidation, "email already registered")}
	rec = serve(http.MethodPost, "/auth/register", "/auth/register", `{"email":"new@example.com","password":"long-enough"}`, uuid.Nil, false, AuthRegister(taken, testLogger()))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already registered")
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	rec := httptest.NewRecorder()
	Health(cfg, testLogger(),
		HealthCheck{Name: "database", Pinger: fakePinger{}},
		HealthCheck{Name: "redis", Pinger: fakePinger{err: errors.New("down")}},
	).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unreachable"`)
	assert.Contains(t, rec.Body.String(), `"database":"connected"`)
}
