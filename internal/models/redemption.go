package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RedemptionStatus tracks audit archival of a redemption.
const (
	RedemptionStatusPending  = "pending"
	RedemptionStatusArchived = "archived"
	RedemptionStatusFailed   = "failed"
)

// Redemption records one consumed use of a coupon by a user. Rows are written
// by the redeem endpoint inside the usage-increment transaction and later
// archived to S3 by the worker.
type Redemption struct {
	ID              uuid.UUID       `json:"id"`
	CouponCode      string          `json:"coupon_code"`
	UserID          string          `json:"user_id"`
	OrderID         string          `json:"order_id,omitempty"`
	DiscountApplied decimal.Decimal `json:"discount_applied"`
	UsageAfter      int             `json:"usage_after"`
	Status          string          `json:"status"`
	ArchiveKey      string          `json:"archive_key,omitempty"`
	ArchiveURL      string          `json:"archive_url,omitempty"`
	RedeemedAt      time.Time       `json:"redeemed_at"`
	ArchivedAt      *time.Time      `json:"archived_at,omitempty"`
}
