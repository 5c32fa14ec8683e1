package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/cache"
	"github.com/noah-isme/digital-store/internal/common"
)

// Service orchestrates catalog queries, admin writes and caching.
type Service struct {
	store        Store
	cache        *cache.JSON
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *cache.JSON
	DefaultLimit int
	MaxLimit     int
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  *bool
	OnSale   bool
	Sort     string
	Page     int
	Limit    int
}

// ProductListResult contains list data and pagination metadata.
type ProductListResult struct {
	Items []Product
	Total int
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog store is required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, defaultLimit: cfg.DefaultLimit, maxLimit: cfg.MaxLimit}, nil
}

// ParseListParams validates query string filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, common.BadRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, common.BadRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = l
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}

	for field, dst := range map[string]**decimal.Decimal{"minPrice": &params.MinPrice, "maxPrice": &params.MaxPrice} {
		if v := strings.TrimSpace(values.Get(field)); v != "" {
			parsed, err := decimal.NewFromString(v)
			if err != nil || parsed.IsNegative() {
				return params, common.BadRequest(field, field+" must be a non-negative number", err)
			}
			*dst = &parsed
		}
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return params, common.BadRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}

	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, common.BadRequest("inStock", "inStock must be true or false", err)
		}
		params.InStock = &b
	}
	if v := strings.TrimSpace(values.Get("onSale")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, common.BadRequest("onSale", "onSale must be true or false", err)
		}
		params.OnSale = b
	}

	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// ListProducts filters, sorts and paginates the catalogue.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return ProductListResult{}, fmt.Errorf("list products: %w", err)
	}
	filtered := make([]Product, 0, len(all))
	for _, p := range all {
		if matches(p, params) {
			filtered = append(filtered, p)
		}
	}
	sortProducts(filtered, params.Sort)
	return ProductListResult{
		Items: common.Paginate(filtered, params.Page, params.Limit),
		Total: len(filtered),
		Page:  params.Page,
		Limit: params.Limit,
	}, nil
}

// Categories returns the distinct categories in catalogue order.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range all {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out, nil
}

// GetProduct returns a product by id, consulting the cache first.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	key := detailCacheKey(id)
	var cached Product
	if ok, err := s.cache.Get(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.Set(ctx, key, p)
	return p, nil
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p = Normalize(p)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	return s.store.Create(ctx, p)
}

// UpdateProduct replaces an existing product.
func (s *Service) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	p = Normalize(p)
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	updated, err := s.store.Update(ctx, p)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.Delete(ctx, detailCacheKey(p.ID))
	return updated, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, detailCacheKey(id))
	return nil
}

func validateProduct(p Product) error {
	if err := common.ValidateStruct(p); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return common.BadRequest("price", err.Error(), err)
	}
	return nil
}

func matches(p Product, params ListParams) bool {
	if params.Query != "" {
		q := strings.ToLower(params.Query)
		if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if params.Category != "" && !strings.EqualFold(p.Category, params.Category) {
		return false
	}
	if params.MinPrice != nil && p.Price.LessThan(*params.MinPrice) {
		return false
	}
	if params.MaxPrice != nil && p.Price.GreaterThan(*params.MaxPrice) {
		return false
	}
	if params.InStock != nil && p.InStock() != *params.InStock {
		return false
	}
	if params.OnSale && !p.OnSale() {
		return false
	}
	return true
}

func normalizeSort(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price_asc", "price_desc", "name", "newest":
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return ""
	}
}

func sortProducts(products []Product, by string) {
	switch by {
	case "price_asc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.LessThan(products[j].Price) })
	case "price_desc":
		sort.SliceStable(products, func(i, j int) bool { return products[i].Price.GreaterThan(products[j].Price) })
	case "name":
		sort.SliceStable(products, func(i, j int) bool { return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name) })
	case "newest":
		sort.SliceStable(products, func(i, j int) bool { return products[i].ID > products[j].ID })
	}
}

func detailCacheKey(id int64) string {
	return cache.Key("product", strconv.FormatInt(id, 10))
}
