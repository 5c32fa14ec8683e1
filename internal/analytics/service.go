package analytics

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/cache"
	"github.com/noah-isme/digital-store/internal/order"
)

// OrderLister pages through placed orders.
type OrderLister interface {
	List(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error)
}

// DailySales aggregates one calendar day (UTC).
type DailySales struct {
	Day       string          `json:"day"`
	Orders    int             `json:"orders"`
	Cancelled int             `json:"cancelled"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// ProductSales ranks a product by units sold.
type ProductSales struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// Overview is the dashboard headline for a range.
type Overview struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Orders        int             `json:"orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageTicket decimal.Decimal `json:"averageTicket"`
	ByStatus      map[string]int  `json:"byStatus"`
	ByPayment     map[string]int  `json:"byPayment"`
}

// Service computes back-office sales reports from the order store. Reports are cached
// for TTL when a Redis-backed cache is attached.
type Service struct {
	Orders       OrderLister
	Cache        *cache.JSON
	DefaultRange int
	Now          func() time.Time
}

const pageSize = 100

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// DefaultWindow returns the range ending now that spans DefaultRange days.
func (s *Service) DefaultWindow(days int) (time.Time, time.Time) {
	if days <= 0 {
		days = s.DefaultRange
	}
	if days <= 0 {
		days = 30
	}
	to := s.now().UTC()
	return to.AddDate(0, 0, -days), to
}

// SalesRange returns one row per day with orders placed in [from, to). Cancelled orders
// are counted but excluded from revenue.
func (s *Service) SalesRange(ctx context.Context, from, to time.Time) ([]DailySales, error) {
	key := cache.Key(cache.NamespaceAnalytics, "sales", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	var rows []DailySales
	if s.cached(ctx, key, &rows) {
		return rows, nil
	}
	orders, err := s.ordersBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byDay := map[string]*DailySales{}
	for _, o := range orders {
		day := o.CreatedAt.UTC().Format("2006-01-02")
		row, ok := byDay[day]
		if !ok {
			row = &DailySales{Day: day, Revenue: decimal.Zero}
			byDay[day] = row
		}
		row.Orders++
		if o.Status == order.StatusCancelled {
			row.Cancelled++
			continue
		}
		row.Units += o.ItemCount()
		row.Revenue = row.Revenue.Add(o.Total)
	}
	rows = make([]DailySales, 0, len(byDay))
	for _, row := range byDay {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day < rows[j].Day })
	s.store(ctx, key, rows)
	return rows, nil
}

// TopProducts ranks products by units sold in [from, to), most sold first.
func (s *Service) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error) {
	if limit <= 0 {
		limit = 10
	}
	key := cache.Key(cache.NamespaceAnalytics, "top", from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), strconv.Itoa(limit))
	var rows []ProductSales
	if s.cached(ctx, key, &rows) {
		return rows, nil
	}
	orders, err := s.ordersBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	byProduct := map[int64]*ProductSales{}
	for _, o := range orders {
		if o.Status == order.StatusCancelled {
			continue
		}
		for _, it := range o.Items {
			row, ok := byProduct[it.ProductID]
			if !ok {
				row = &ProductSales{ProductID: it.ProductID, Name: it.Name, Revenue: decimal.Zero}
				byProduct[it.ProductID] = row
			}
			row.Units += it.Quantity
			row.Revenue = row.Revenue.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	rows = make([]ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Units != rows[j].Units {
			return rows[i].Units > rows[j].Units
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	s.store(ctx, key, rows)
	return rows, nil
}

// Overview summarises orders placed in [from, to).
func (s *Service) Overview(ctx context.Context, from, to time.Time) (Overview, error) {
	orders, err := s.ordersBetween(ctx, from, to)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{
		From:          from.UTC(),
		To:            to.UTC(),
		Revenue:       decimal.Zero,
		AverageTicket: decimal.Zero,
		ByStatus:      map[string]int{},
		ByPayment:     map[string]int{},
	}
	paid := 0
	for _, o := range orders {
		out.Orders++
		out.ByStatus[string(o.Status)]++
		out.ByPayment[string(o.PaymentMethod)]++
		if o.Status == order.StatusCancelled {
			continue
		}
		paid++
		out.Revenue = out.Revenue.Add(o.Total)
	}
	if paid > 0 {
		out.AverageTicket = out.Revenue.Div(decimal.NewFromInt(int64(paid))).Round(2)
	}
	return out, nil
}

func (s *Service) ordersBetween(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	if s == nil || s.Orders == nil {
		return nil, errors.New("analytics service not configured")
	}
	var out []order.Order
	for page := 1; ; page++ {
		batch, total, err := s.Orders.List(ctx, order.ListFilter{Page: page, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		for _, o := range batch {
			if !o.CreatedAt.Before(from) && o.CreatedAt.Before(to) {
				out = append(out, o)
			}
		}
		if len(batch) == 0 || page*pageSize >= total {
			return out, nil
		}
	}
}

func (s *Service) cached(ctx context.Context, key string, dst any) bool {
	if !s.Cache.Enabled() {
		return false
	}
	hit, err := s.Cache.Get(ctx, key, dst)
	return err == nil && hit
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if !s.Cache.Enabled() {
		return
	}
	_ = s.Cache.Set(ctx, key, value)
}
