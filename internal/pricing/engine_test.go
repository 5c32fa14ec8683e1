package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/digital-store/internal/coupon"
	"github.com/noah-isme/digital-store/internal/pricing"
)

func money(v string) pricing.Money {
	return pricing.MustParse(v)
}

func moneyPtr(v string) *pricing.Money {
	m := money(v)
	return &m
}

func requireMoney(t *testing.T, want string, got pricing.Money) {
	t.Helper()
	require.Truef(t, money(want).Equal(got), "expected %s, got %s", want, got.String())
}

func item(unit, original string, qty int) pricing.Item {
	return pricing.Item{UnitPrice: money(unit), OriginalUnitPrice: money(original), Quantity: qty}
}

func TestComputeEmptyCart(t *testing.T) {
	t.Parallel()

	summary, err := pricing.NewEngine().Compute(pricing.Input{})
	require.NoError(t, err)
	for _, m := range []pricing.Money{
		summary.OriginalSubtotal, summary.DiscountedSubtotal, summary.ItemDiscount,
		summary.CouponDiscount, summary.FinalShipping, summary.ShippingDiscount,
		summary.IntermediateTotal, summary.PaymentDiscount, summary.FinalTotal,
	} {
		requireMoney(t, "0", m)
	}
	require.False(t, summary.ShippingResolved)
	require.False(t, summary.FreeShippingByThreshold)
}

func TestComputeFullBreakdown(t *testing.T) {
	t.Parallel()

	welcome := coupon.Welcome()
	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items: []pricing.Item{
			item("100", "200", 1),
			item("89", "89", 2),
		},
		Coupon:        &welcome,
		BaseShipping:  moneyPtr("25"),
		PaymentMethod: pricing.PaymentCard,
	})
	require.NoError(t, err)
	requireMoney(t, "378", summary.OriginalSubtotal)
	requireMoney(t, "278", summary.DiscountedSubtotal)
	requireMoney(t, "100", summary.ItemDiscount)
	// stackable: 10% of every discounted line
	requireMoney(t, "27.8", summary.CouponDiscount)
	requireMoney(t, "25", summary.FinalShipping)
	requireMoney(t, "0", summary.ShippingDiscount)
	requireMoney(t, "275.2", summary.IntermediateTotal)
	requireMoney(t, "0", summary.PaymentDiscount)
	requireMoney(t, "275.2", summary.FinalTotal)
	requireMoney(t, "127.8", summary.TotalDiscount())
}

func TestThresholdUsesOriginalSubtotal(t *testing.T) {
	t.Parallel()

	shipping := coupon.Coupon{Code: "FRETE50", Type: coupon.TypeShipping, DiscountPercent: 50}
	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:        []pricing.Item{item("300", "500", 1)},
		Coupon:       &shipping,
		BaseShipping: moneyPtr("45"),
	})
	require.NoError(t, err)
	require.True(t, summary.FreeShippingByThreshold)
	requireMoney(t, "0", summary.FinalShipping)
	requireMoney(t, "45", summary.ShippingDiscount)
	requireMoney(t, "300", summary.IntermediateTotal)
}

func TestThresholdNotReached(t *testing.T) {
	t.Parallel()

	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:        []pricing.Item{item("499.99", "499.99", 1)},
		BaseShipping: moneyPtr("15"),
	})
	require.NoError(t, err)
	require.False(t, summary.FreeShippingByThreshold)
	requireMoney(t, "15", summary.FinalShipping)
	requireMoney(t, "514.99", summary.FinalTotal)
}

func TestStackability(t *testing.T) {
	t.Parallel()

	items := []pricing.Item{item("80", "100", 1)}
	nonStackable := coupon.Coupon{Code: "DEZ", Type: coupon.TypeProduct, DiscountPercent: 10}
	stackable := nonStackable
	stackable.Stackable = true

	engine := pricing.NewEngine()
	summary, err := engine.Compute(pricing.Input{Items: items, Coupon: &nonStackable})
	require.NoError(t, err)
	requireMoney(t, "0", summary.CouponDiscount)

	summary, err = engine.Compute(pricing.Input{Items: items, Coupon: &stackable})
	require.NoError(t, err)
	requireMoney(t, "8", summary.CouponDiscount)

	items[0].Quantity = 3
	summary, err = engine.Compute(pricing.Input{Items: items, Coupon: &stackable})
	require.NoError(t, err)
	requireMoney(t, "24", summary.CouponDiscount)
}

func TestPixDiscount(t *testing.T) {
	t.Parallel()

	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:         []pricing.Item{item("100", "100", 2)},
		PaymentMethod: pricing.PaymentPix,
	})
	require.NoError(t, err)
	requireMoney(t, "200", summary.IntermediateTotal)
	requireMoney(t, "10", summary.PaymentDiscount)
	requireMoney(t, "190", summary.FinalTotal)
}

func TestShippingCouponPercent(t *testing.T) {
	t.Parallel()

	half := coupon.Coupon{Code: "FRETEMETADE", Type: coupon.TypeShipping, DiscountPercent: 50}
	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:        []pricing.Item{item("50", "50", 1)},
		Coupon:       &half,
		BaseShipping: moneyPtr("25"),
	})
	require.NoError(t, err)
	requireMoney(t, "12.5", summary.FinalShipping)
	requireMoney(t, "12.5", summary.ShippingDiscount)
	requireMoney(t, "0", summary.CouponDiscount)
}

func TestFreeShippingCouponIgnoresPercent(t *testing.T) {
	t.Parallel()

	for _, pct := range []int{0, 30, 100} {
		free := coupon.Coupon{Code: "FRETEGRATIS", Type: coupon.TypeShipping, DiscountPercent: pct, IsFreeShipping: true}
		summary, err := pricing.NewEngine().Compute(pricing.Input{
			Items:        []pricing.Item{item("50", "50", 1)},
			Coupon:       &free,
			BaseShipping: moneyPtr("45"),
		})
		require.NoError(t, err)
		requireMoney(t, "0", summary.FinalShipping)
		requireMoney(t, "45", summary.ShippingDiscount)
	}
}

func TestDegenerateShippingCouponHasNoEffect(t *testing.T) {
	t.Parallel()

	noop := coupon.Coupon{Code: "NADA", Type: coupon.TypeShipping}
	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:        []pricing.Item{item("50", "50", 1)},
		Coupon:       &noop,
		BaseShipping: moneyPtr("25"),
	})
	require.NoError(t, err)
	requireMoney(t, "25", summary.FinalShipping)
	requireMoney(t, "0", summary.ShippingDiscount)
	requireMoney(t, "75", summary.FinalTotal)
}

func TestUnresolvedShipping(t *testing.T) {
	t.Parallel()

	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items: []pricing.Item{item("50", "50", 1)},
	})
	require.NoError(t, err)
	require.False(t, summary.ShippingResolved)
	requireMoney(t, "0", summary.FinalShipping)
	requireMoney(t, "0", summary.ShippingDiscount)

	summary, err = pricing.NewEngine().Compute(pricing.Input{
		Items:        []pricing.Item{item("50", "50", 1)},
		BaseShipping: moneyPtr("0"),
	})
	require.NoError(t, err)
	require.True(t, summary.ShippingResolved)
}

func TestFullCouponNeverNegative(t *testing.T) {
	t.Parallel()

	all := coupon.Coupon{Code: "TUDO", Type: coupon.TypeProduct, DiscountPercent: 100, Stackable: true}
	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:         []pricing.Item{item("80", "100", 2), item("10", "10", 1)},
		Coupon:        &all,
		PaymentMethod: pricing.PaymentPix,
	})
	require.NoError(t, err)
	requireMoney(t, "0", summary.IntermediateTotal)
	requireMoney(t, "0", summary.FinalTotal)
	require.False(t, summary.FinalTotal.IsNegative())
}

func TestComputeIsIdempotent(t *testing.T) {
	t.Parallel()

	welcome := coupon.Welcome()
	in := pricing.Input{
		Items:         []pricing.Item{item("33.33", "40", 3), item("19.99", "19.99", 1)},
		Coupon:        &welcome,
		BaseShipping:  moneyPtr("15"),
		PaymentMethod: pricing.PaymentPix,
	}
	engine := pricing.NewEngine()
	first, err := engine.Compute(in)
	require.NoError(t, err)
	second, err := engine.Compute(in)
	require.NoError(t, err)
	require.True(t, first.FinalTotal.Equal(second.FinalTotal))
	require.True(t, first.CouponDiscount.Equal(second.CouponDiscount))
	require.Equal(t, first.Rounded().FinalTotal.StringFixed(2), second.Rounded().FinalTotal.StringFixed(2))
}

func TestMonotonicity(t *testing.T) {
	t.Parallel()

	engine := pricing.NewEngine()
	coupons := []*coupon.Coupon{
		nil,
		{Code: "A", Type: coupon.TypeProduct, DiscountPercent: 15},
		{Code: "B", Type: coupon.TypeProduct, DiscountPercent: 100, Stackable: true},
		{Code: "C", Type: coupon.TypeShipping, DiscountPercent: 40},
		{Code: "D", Type: coupon.TypeShipping, IsFreeShipping: true},
	}
	methods := []pricing.PaymentMethod{pricing.PaymentNone, pricing.PaymentPix, pricing.PaymentCard, pricing.PaymentBoleto}
	for _, c := range coupons {
		for _, m := range methods {
			summary, err := engine.Compute(pricing.Input{
				Items:         []pricing.Item{item("120", "150", 2), item("45.5", "45.5", 1)},
				Coupon:        c,
				BaseShipping:  moneyPtr("25"),
				PaymentMethod: m,
			})
			require.NoError(t, err)
			ceiling := summary.DiscountedSubtotal.Add(summary.FinalShipping)
			require.True(t, summary.FinalTotal.LessThanOrEqual(ceiling))
			require.False(t, summary.IntermediateTotal.IsNegative())
			require.False(t, summary.FinalTotal.IsNegative())
		}
	}
}

func TestNoIntermediateRounding(t *testing.T) {
	t.Parallel()

	pct := coupon.Coupon{Code: "SETE", Type: coupon.TypeProduct, DiscountPercent: 7}
	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:         []pricing.Item{item("0.15", "0.15", 1), item("0.15", "0.15", 1), item("0.15", "0.15", 1)},
		Coupon:        &pct,
		PaymentMethod: pricing.PaymentPix,
	})
	require.NoError(t, err)
	// 0.45 * 0.07 = 0.0315 kept exact; rounding per line would give 0.03
	requireMoney(t, "0.0315", summary.CouponDiscount)
	requireMoney(t, "0.4185", summary.IntermediateTotal)
	require.Equal(t, "0.40", summary.Rounded().FinalTotal.StringFixed(2))
}

func TestRoundHalfUp(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0.13", pricing.Round(money("0.125")).StringFixed(2))
	require.Equal(t, "10.00", pricing.Round(money("9.995")).StringFixed(2))
	require.Equal(t, "1.23", pricing.Round(money("1.2349")).StringFixed(2))
}

func TestInstallments(t *testing.T) {
	t.Parallel()

	summary, err := pricing.NewEngine().Compute(pricing.Input{
		Items:         []pricing.Item{item("100", "100", 1)},
		PaymentMethod: pricing.PaymentCard,
	})
	require.NoError(t, err)
	per, err := summary.Installments(3)
	require.NoError(t, err)
	require.Equal(t, "33.33", per.StringFixed(2))

	_, err = summary.Installments(0)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
	_, err = summary.Installments(13)
	require.ErrorIs(t, err, pricing.ErrInvalidInput)
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	engine := pricing.NewEngine()
	tooMuch := coupon.Coupon{Code: "X", Type: coupon.TypeProduct, DiscountPercent: 150}
	cases := map[string]pricing.Input{
		"negative price":    {Items: []pricing.Item{item("-1", "10", 1)}},
		"negative original": {Items: []pricing.Item{item("0", "-10", 1)}},
		"zero quantity":     {Items: []pricing.Item{item("10", "10", 0)}},
		"negative quantity": {Items: []pricing.Item{item("10", "10", -2)}},
		"price over orig":   {Items: []pricing.Item{item("120", "100", 1)}},
		"coupon over 100":   {Items: []pricing.Item{item("10", "10", 1)}, Coupon: &tooMuch},
		"negative shipping": {BaseShipping: moneyPtr("-5")},
		"unknown payment":   {PaymentMethod: pricing.PaymentMethod("cash")},
	}
	for name, in := range cases {
		_, err := engine.Compute(in)
		require.ErrorIsf(t, err, pricing.ErrInvalidInput, "case %s", name)
	}

	_, err := engine.Compute(pricing.Input{Coupon: &tooMuch})
	require.ErrorIs(t, err, coupon.ErrInvalid)
}

func TestCustomThreshold(t *testing.T) {
	t.Parallel()

	engine := pricing.NewEngine(pricing.WithFreeShippingThreshold(money("100")), pricing.WithPixDiscountRate(money("0.10")))
	summary, err := engine.Compute(pricing.Input{
		Items:         []pricing.Item{item("100", "100", 1)},
		BaseShipping:  moneyPtr("45"),
		PaymentMethod: pricing.PaymentPix,
	})
	require.NoError(t, err)
	require.True(t, summary.FreeShippingByThreshold)
	requireMoney(t, "10", summary.PaymentDiscount)
	requireMoney(t, "90", summary.FinalTotal)
}
