package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role tiers. Commission rates are configured per tier in SchemeCommission.
const (
	RoleWholesaler        = 2
	RoleRetailer          = 3
	RoleMasterDistributor = 4
	RoleDistributor       = 5
	RoleSubRetailer       = 6
)

// RootUserID is the platform account at the top of the reseller hierarchy.
// The commission waterfall never credits it.
const RootUserID = 1

const (
	UserStatusActive   = 1
	UserStatusDisabled = 0
)

// User is a reseller account. WalletBalance is the single mutable shared
// value in the system and may only be changed through the wallet ledger.
type User struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ParentID      int64           `gorm:"index;not null;default:0" json:"parent_id"`
	RoleID        int             `gorm:"not null" json:"role_id"`
	SchemeID      int64           `gorm:"not null;default:0" json:"scheme_id"`
	WalletBalance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"wallet_balance"`
	MinBalance    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_balance"`
	TPin          string          `gorm:"type:varchar(16);not null" json:"-"`
	Status        int             `gorm:"not null;default:1" json:"status"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// HasParent reports whether the account has an ancestor eligible for
// commission. Parent 0 means no parent; the root account is excluded.
func (u *User) HasParent() bool {
	return u.ParentID != 0 && u.ParentID != RootUserID
}
