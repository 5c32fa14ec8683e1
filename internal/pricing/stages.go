package pricing

import "github.com/noah-isme/digital-store/internal/coupon"

// StageName identifies a step of the pricing pipeline.
type StageName string

// Stages run in this order. Item promotions are already part of UnitPrice, the coupon is
// evaluated on discounted prices, shipping is settled next and the payment incentive last.
const (
	StageSubtotals StageName = "subtotals"
	StageCoupon    StageName = "coupon"
	StageShipping  StageName = "shipping"
	StageTotal     StageName = "total"
	StagePayment   StageName = "payment"
)

// Stage is one pure step of the pipeline: it reads the input and the summary built so far.
type Stage struct {
	Name  StageName
	Apply func(in Input, s Summary) Summary
}

// Pipeline returns the ordered stages used by Compute.
func (e Engine) Pipeline() []Stage {
	return []Stage{
		{Name: StageSubtotals, Apply: func(in Input, s Summary) Summary {
			s.OriginalSubtotal, s.DiscountedSubtotal = Subtotals(in.Items)
			s.ItemDiscount = s.OriginalSubtotal.Sub(s.DiscountedSubtotal)
			return s
		}},
		{Name: StageCoupon, Apply: func(in Input, s Summary) Summary {
			s.CouponDiscount = CouponDiscount(in.Items, in.Coupon)
			return s
		}},
		{Name: StageShipping, Apply: func(in Input, s Summary) Summary {
			res := e.Shipping(in.BaseShipping, s.OriginalSubtotal, in.Coupon)
			s.ShippingResolved = res.Resolved
			s.FreeShippingByThreshold = res.FreeByThreshold
			s.BaseShipping = res.Base
			s.FinalShipping = res.Final
			s.ShippingDiscount = res.Discount
			return s
		}},
		{Name: StageTotal, Apply: func(_ Input, s Summary) Summary {
			s.IntermediateTotal = IntermediateTotal(s.DiscountedSubtotal, s.FinalShipping, s.CouponDiscount)
			return s
		}},
		{Name: StagePayment, Apply: func(in Input, s Summary) Summary {
			s.PaymentMethod = in.PaymentMethod
			s.PaymentDiscount = e.PaymentDiscount(s.IntermediateTotal, in.PaymentMethod)
			s.FinalTotal = s.IntermediateTotal.Sub(s.PaymentDiscount)
			return s
		}},
	}
}

// Subtotals returns the merchandise value at original and at discounted unit prices.
func Subtotals(items []Item) (original, discounted Money) {
	original, discounted = zero, zero
	for _, it := range items {
		qty := MoneyFromInt(it.Quantity)
		original = original.Add(it.OriginalUnitPrice.Mul(qty))
		discounted = discounted.Add(it.UnitPrice.Mul(qty))
	}
	return original, discounted
}

// CouponDiscount computes the product-coupon discount over discounted unit prices.
// Items with their own promotion are skipped unless the coupon is stackable.
func CouponDiscount(items []Item, c *coupon.Coupon) Money {
	if c == nil || !c.AppliesToProducts() || c.DiscountPercent <= 0 {
		return zero
	}
	rate := Percent(c.DiscountPercent)
	total := zero
	for _, it := range items {
		if it.Discounted() && !c.Stackable {
			continue
		}
		total = total.Add(it.UnitPrice.Mul(MoneyFromInt(it.Quantity)).Mul(rate))
	}
	return total
}

// ShippingResult is the outcome of the shipping stage.
type ShippingResult struct {
	Resolved        bool
	FreeByThreshold bool
	Base            Money
	Final           Money
	Discount        Money
}

// Shipping settles the shipping charge. The threshold is checked against the original
// subtotal, so promotional prices never push a cart below it.
func (e Engine) Shipping(base *Money, originalSubtotal Money, c *coupon.Coupon) ShippingResult {
	res := ShippingResult{
		FreeByThreshold: originalSubtotal.GreaterThanOrEqual(e.FreeShippingThreshold),
		Base:            zero,
		Final:           zero,
		Discount:        zero,
	}
	if base == nil {
		return res
	}
	res.Resolved = true
	res.Base = *base
	switch {
	case res.FreeByThreshold:
		res.Final = zero
	case c != nil && c.AppliesToShipping() && c.IsFreeShipping:
		res.Final = zero
	case c != nil && c.AppliesToShipping() && c.DiscountPercent > 0:
		res.Final = maxMoney(zero, base.Mul(decimalOne.Sub(Percent(c.DiscountPercent))))
	default:
		res.Final = *base
	}
	res.Discount = res.Base.Sub(res.Final)
	return res
}

// IntermediateTotal is the amount due before the payment incentive, never below zero.
func IntermediateTotal(discountedSubtotal, finalShipping, couponDiscount Money) Money {
	return maxMoney(zero, discountedSubtotal.Add(finalShipping).Sub(couponDiscount))
}

// PaymentDiscount returns the incentive granted for the selected payment method.
func (e Engine) PaymentDiscount(intermediate Money, method PaymentMethod) Money {
	if method != PaymentPix {
		return zero
	}
	return intermediate.Mul(e.PixDiscountRate)
}
