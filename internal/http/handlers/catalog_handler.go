package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dukkan/storefront-gateway/internal/catalog"
	"github.com/dukkan/storefront-gateway/internal/domain"
	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/token"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/config"
)

// CatalogAPI is the slice of the commerce client the catalog pages need.
type CatalogAPI interface {
	ListProducts(ctx context.Context, opts upstream.ListProductsOptions) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, slug, currency string) (*domain.Product, error)
	GetHomepage(ctx context.Context) (*domain.Homepage, error)
}

type CatalogHandler struct {
	API      CatalogAPI
	Cache    *catalog.HomepageCache
	Tokens   token.Store
	Defaults config.StoreConfig
}

func NewCatalogHandler(api CatalogAPI, cache *catalog.HomepageCache, tokens token.Store, defaults config.StoreConfig) *CatalogHandler {
	return &CatalogHandler{API: api, Cache: cache, Tokens: tokens, Defaults: defaults}
}

func (h *CatalogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/products", h.listProducts)
	r.Get("/products/{slug}", h.getProduct)
	return r
}

// currency resolves the session's display currency, falling back to the
// store default.
func (h *CatalogHandler) currency(r *http.Request) string {
	if prefs, ok := h.Tokens.GetPreferences(r.Context(), gwmiddleware.SessionID(r)); ok && prefs.Currency != "" {
		return prefs.Currency
	}
	return h.Defaults.DefaultCurrency
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	products, err := h.API.ListProducts(r.Context(), upstream.ListProductsOptions{
		Page:     page,
		PerPage:  perPage,
		Sort:     q.Get("sort"),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Currency: h.currency(r),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.API.GetProduct(r.Context(), chi.URLParam(r, "slug"), h.currency(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, product)
}

// Homepage serves the CMS layout, cached for a short TTL.
func (h *CatalogHandler) Homepage(w http.ResponseWriter, r *http.Request) {
	if cached := h.Cache.Get(r.Context()); cached != nil {
		response.WriteJSON(w, http.StatusOK, cached)
		return
	}

	homepage, err := h.API.GetHomepage(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.Cache.Set(r.Context(), homepage)
	response.WriteJSON(w, http.StatusOK, homepage)
}
