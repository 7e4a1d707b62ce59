package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SchemeStatusEnabled  = 1
	SchemeStatusDisabled = 0
)

// Scheme groups commission rate tables. Every account belongs to one
// scheme; a whole waterfall uses the originating order's scheme.
type Scheme struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SchemeName string    `gorm:"type:varchar(64);not null" json:"scheme_name"`
	Status     int       `gorm:"not null;default:1" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Scheme) TableName() string {
	return "schemes"
}

// Commission rate kinds.
const (
	AmountTypeFlat    = "Commission Flat"
	AmountTypePercent = "Commission Percent"
)

// SchemeCommission configures, per scheme and provider, one rate spec for
// each role tier: either a flat amount or a percentage of the order amount.
type SchemeCommission struct {
	ID         int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SchemeID   int64 `gorm:"index:idx_scheme_provider,unique;not null" json:"scheme_id"`
	ProviderID int64 `gorm:"index:idx_scheme_provider,unique;not null" json:"provider_id"`

	RtAmountType  string          `gorm:"type:varchar(32)" json:"rt_amount_type"`
	RtAmountValue decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"rt_amount_value"`
	DtAmountType  string          `gorm:"type:varchar(32)" json:"dt_amount_type"`
	DtAmountValue decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"dt_amount_value"`
	MdAmountType  string          `gorm:"type:varchar(32)" json:"md_amount_type"`
	MdAmountValue decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"md_amount_value"`
	WtAmountType  string          `gorm:"type:varchar(32)" json:"wt_amount_type"`
	WtAmountValue decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"wt_amount_value"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SchemeCommission) TableName() string {
	return "scheme_commissions"
}

// RateFor returns the amount type and value configured for a role tier.
func (c *SchemeCommission) RateFor(roleID int) (string, decimal.Decimal) {
	switch roleID {
	case RoleRetailer, RoleSubRetailer:
		return c.RtAmountType, c.RtAmountValue
	case RoleDistributor:
		return c.DtAmountType, c.DtAmountValue
	case RoleMasterDistributor:
		return c.MdAmountType, c.MdAmountValue
	case RoleWholesaler:
		return c.WtAmountType, c.WtAmountValue
	}
	return "", decimal.Zero
}
