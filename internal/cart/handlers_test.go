package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/catalog"
	"github.com/noah-isme/digital-store/internal/common"
)

type productsFunc func(ctx context.Context, id int64) (catalog.Product, error)

func (f productsFunc) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	return f(ctx, id)
}

func newCartRouter(t *testing.T) http.Handler {
	t.Helper()
	products := catalog.NewMemoryStore(catalog.InitialProducts()...)
	h := &Handler{Registry: NewRegistry(nil), Products: productsFunc(products.Get)}

	r := chi.NewRouter()
	r.Use(common.Session)
	r.Get("/cart", h.Get)
	r.Delete("/cart", h.Clear)
	r.Post("/cart/items", h.AddItem)
	r.Patch("/cart/items/{key}", h.UpdateItem)
	r.Delete("/cart/items/{key}", h.RemoveItem)
	return r
}

type cartResponse struct {
	Data View `json:"data"`
}

func doCart(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, cartResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(common.SessionHeader, "sess-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp cartResponse
	if rec.Code < 300 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCartHandlersFlow(t *testing.T) {
	h := newCartRouter(t)

	rec, resp := doCart(t, h, http.MethodPost, "/cart/items", `{"productId":1,"size":"42","color":"Preto","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, resp.Data.Items, 1)
	require.Equal(t, "1-42-Preto", resp.Data.Items[0].ID)
	require.Equal(t, "200", resp.Data.Subtotal.String())

	rec, resp = doCart(t, h, http.MethodPost, "/cart/items", `{"productId":3,"size":"M","color":"Branco","quantity":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 3, resp.Data.Count)
	require.Equal(t, "289", resp.Data.Subtotal.String())

	rec, resp = doCart(t, h, http.MethodPatch, "/cart/items/1-42-Preto", `{"delta":-1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, resp.Data.Items[0].Quantity)

	rec, resp = doCart(t, h, http.MethodDelete, "/cart/items/3-M-Branco", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resp.Data.Items, 1)

	rec, resp = doCart(t, h, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, resp.Data.Count)

	rec, resp = doCart(t, h, http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, resp.Data.Items)
}

func TestCartHandlersErrors(t *testing.T) {
	h := newCartRouter(t)

	rec, _ := doCart(t, h, http.MethodPost, "/cart/items", `{"productId":1,"size":"44","quantity":1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "SIZE_UNAVAILABLE")

	rec, _ = doCart(t, h, http.MethodPost, "/cart/items", `{"productId":99,"quantity":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doCart(t, h, http.MethodPost, "/cart/items", `{"productId":1,"size":"42","quantity":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doCart(t, h, http.MethodPatch, "/cart/items/nope", `{"delta":1}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = doCart(t, h, http.MethodPost, "/cart/items", `{"productId":1,"size":"4-2","quantity":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doCart(t, h, http.MethodPost, "/cart/items", `{"productId":1,"size":"42","color":"Preto","quantity":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = doCart(t, h, http.MethodPatch, "/cart/items/1-42-Preto", `{"delta":9223372036854775807}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = doCart(t, h, http.MethodPatch, "/cart/items/1-42-Preto", `{"delta":98}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = doCart(t, h, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"quantity":2`)
}
