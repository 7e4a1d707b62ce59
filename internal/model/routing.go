package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Routing strategies, evaluated in RouteSetting priority order.
const (
	RouteCodeAmountWise = "amount_wise"
	RouteCodeStateWise  = "state_wise"
	RouteCodeUserWise   = "user_wise"
)

const (
	RouteStatusEnabled  = 1
	RouteStatusDisabled = 0
)

// RouteSetting orders the routing strategies. First strategy that yields a
// match wins; lower priority value is evaluated first.
type RouteSetting struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RouteCode string    `gorm:"type:varchar(32);not null" json:"route_code"`
	Priority  int       `gorm:"not null" json:"priority"`
	Status    int       `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RouteSetting) TableName() string {
	return "route_settings"
}

// amountListMatches checks a comma-separated amount allow-list. An empty
// list (or "0") matches any amount.
func amountListMatches(list string, amount decimal.Decimal) bool {
	list = strings.TrimSpace(list)
	if list == "" || list == "0" {
		return true
	}
	for _, part := range strings.Split(list, ",") {
		allowed, err := decimal.NewFromString(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		if allowed.Equal(amount) {
			return true
		}
	}
	return false
}

// AmountSwitch routes a provider's orders to a specific API for the listed
// amounts. Unlike the state/user switches, an empty amount list here means
// the rule is inert rather than catch-all: amount-wise routing exists only
// to pin particular denominations.
type AmountSwitch struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderID int64     `gorm:"index;not null" json:"provider_id"`
	ApiID      int64     `gorm:"not null" json:"api_id"`
	Amount     string    `gorm:"type:varchar(256)" json:"amount"`
	Status     int       `gorm:"not null;default:1" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AmountSwitch) TableName() string {
	return "amount_switches"
}

// Matches reports whether this amount-wise rule routes the given amount.
func (s *AmountSwitch) Matches(amount decimal.Decimal) bool {
	list := strings.TrimSpace(s.Amount)
	if list == "" || list == "0" {
		return false
	}
	return amountListMatches(list, amount)
}

// StateSwitch routes a provider's orders from one region to a specific API,
// optionally narrowed to an amount allow-list.
type StateSwitch struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderID int64     `gorm:"index;not null" json:"provider_id"`
	StateID    int64     `gorm:"index;not null" json:"state_id"`
	ApiID      int64     `gorm:"not null" json:"api_id"`
	Amount     string    `gorm:"type:varchar(256)" json:"amount"`
	Status     int       `gorm:"not null;default:1" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (StateSwitch) TableName() string {
	return "state_switches"
}

func (s *StateSwitch) Matches(amount decimal.Decimal) bool {
	return amountListMatches(s.Amount, amount)
}

// UserSwitch pins one reseller's orders for a provider/region to a
// specific API.
type UserSwitch struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderID int64     `gorm:"index;not null" json:"provider_id"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	StateID    int64     `gorm:"not null" json:"state_id"`
	ApiID      int64     `gorm:"not null" json:"api_id"`
	Amount     string    `gorm:"type:varchar(256)" json:"amount"`
	Status     int       `gorm:"not null;default:1" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserSwitch) TableName() string {
	return "user_switches"
}

func (s *UserSwitch) Matches(amount decimal.Decimal) bool {
	return amountListMatches(s.Amount, amount)
}
