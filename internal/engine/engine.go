// Package engine picks the single best coupon for a user and cart. It is a
// pure computation over snapshots: no I/O, no stored state, safe for any
// number of concurrent callers. Persistence, transport and usage-count
// mutation belong to the packages around it.
package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promostack/coupon-backend/internal/models"
)

// ErrNegativeCartValue means the computed cart value is below zero. Discount
// math is meaningless on such input, so the whole evaluation fails.
var ErrNegativeCartValue = errors.New("cart value is negative")

// UsageLookup reads the current redemption count for a coupon/user pair. It
// must return stable values for the duration of one Evaluate call; handlers
// satisfy this by prefetching the counts into a map.
type UsageLookup func(code, userID string) int

// Input is the snapshot one evaluation runs over.
type Input struct {
	Coupons []models.Coupon
	User    models.UserProfile
	Cart    models.Cart
	Usage   UsageLookup
	Now     time.Time

	// IncludeUsageProjection adds the informational projected usage count
	// (current + 1) and the winner's limit to the result. Nothing is mutated.
	IncludeUsageProjection bool
}

// Result is the outcome of one evaluation. Best is nil when no coupon is
// eligible; that is a normal outcome, not an error. ProjectedUsage and
// UsageLimit are set only when the projection was requested and a winner
// exists.
type Result struct {
	Best           *models.Coupon
	Discount       decimal.Decimal
	ProjectedUsage *int
	UsageLimit     *int
}

// Evaluate filters the coupon set down to the eligible subset, computes each
// candidate's discount and returns the unique winner under the deterministic
// tie-break order. Identical inputs always produce identical results.
func Evaluate(in Input) (Result, error) {
	cartValue := in.Cart.TotalValue()
	if cartValue.IsNegative() {
		return Result{}, ErrNegativeCartValue
	}

	var eligible []models.Coupon
	for _, c := range in.Coupons {
		usage := 0
		if in.Usage != nil {
			usage = in.Usage(c.Code, in.User.UserID)
		}
		if Eligible(c, in.User, in.Cart, usage, in.Now) {
			eligible = append(eligible, c)
		}
	}

	best, discount := SelectBest(eligible, cartValue)
	if best == nil {
		return Result{}, nil
	}

	res := Result{Best: best, Discount: discount}
	if in.IncludeUsageProjection {
		projected := 1
		if in.Usage != nil {
			projected = in.Usage(best.Code, in.User.UserID) + 1
		}
		limit := best.UsageLimitPerUser
		res.ProjectedUsage = &projected
		res.UsageLimit = &limit
	}
	return res, nil
}
