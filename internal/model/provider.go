package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderStatusEnabled  = 1
	ProviderStatusDisabled = 0
)

// Provider is an upstream telecom/utility operator. ApiID is the default
// route; the backup ids are tried in order when the routed API fails.
type Provider struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderName string    `gorm:"type:varchar(64);not null" json:"provider_name"`
	ServiceID    int64     `gorm:"not null;default:0" json:"service_id"`
	ApiID        int64     `gorm:"not null;default:0" json:"api_id"`
	BackupApiID  int64     `gorm:"not null;default:0" json:"backup_api_id"`
	BackupApi2ID int64     `gorm:"not null;default:0" json:"backup_api2_id"`
	BackupApi3ID int64     `gorm:"not null;default:0" json:"backup_api3_id"`
	Status       int       `gorm:"not null;default:1" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Provider) TableName() string {
	return "providers"
}

// BackupApiIDs returns the configured backup APIs in fallback order,
// zero entries removed.
func (p *Provider) BackupApiIDs() []int64 {
	ids := make([]int64, 0, 3)
	for _, id := range []int64{p.BackupApiID, p.BackupApi2ID, p.BackupApi3ID} {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

const (
	ApiStatusEnabled  = 1
	ApiStatusDisabled = 0
)

const ApiFormatJSON = "JSON"

// Api holds one upstream endpoint's credentials, URL template and the
// data-driven response-field mapping. Different upstreams use different
// field names and value vocabularies, so none of this is hard-coded: the
// executor interprets responses purely through these columns. The callback
// mapping is separate because asynchronous pushes often speak a different
// vocabulary than the synchronous response.
type Api struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ApiName     string `gorm:"type:varchar(64);not null" json:"api_name"`
	ApiUsername string `gorm:"type:varchar(128)" json:"-"`
	ApiPassword string `gorm:"type:varchar(128)" json:"-"`
	ApiKey      string `gorm:"type:varchar(128)" json:"-"`
	ApiURL      string `gorm:"type:varchar(512);not null" json:"api_url"`
	ApiMethod   string `gorm:"type:varchar(8);not null;default:GET" json:"api_method"`
	ApiFormat   string `gorm:"type:varchar(8);not null;default:JSON" json:"api_format"`

	// Synchronous response mapping.
	StatusValue     string `gorm:"type:varchar(32);not null" json:"status_value"`
	SuccessValue    string `gorm:"type:varchar(32);not null" json:"success_value"`
	FailedValue     string `gorm:"type:varchar(32);not null" json:"failed_value"`
	PendingValue    string `gorm:"type:varchar(32)" json:"pending_value"`
	RefundValue     string `gorm:"type:varchar(32)" json:"refund_value"`
	ErrorValue      string `gorm:"type:varchar(32)" json:"error_value"`
	ErrorResponse   string `gorm:"type:varchar(32)" json:"error_response"`
	OrderIDValue    string `gorm:"type:varchar(32)" json:"order_id_value"`
	OperatorIDValue string `gorm:"type:varchar(32)" json:"operator_id_value"`

	// Callback mapping.
	CallbackSuccessValue string `gorm:"type:varchar(32)" json:"callback_success_value"`
	CallbackFailedValue  string `gorm:"type:varchar(32)" json:"callback_failed_value"`
	CallbackPendingValue string `gorm:"type:varchar(32)" json:"callback_pending_value"`
	CallbackRefundValue  string `gorm:"type:varchar(32)" json:"callback_refund_value"`

	Status    int       `gorm:"not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Api) TableName() string {
	return "apis"
}

// ApiProviderCode maps a provider to the operator code one particular API
// expects. A missing row is a configuration gap, not an upstream error.
type ApiProviderCode struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ApiID        int64  `gorm:"index:idx_api_provider,unique;not null" json:"api_id"`
	ProviderID   int64  `gorm:"index:idx_api_provider,unique;not null" json:"provider_id"`
	ProviderCode string `gorm:"type:varchar(32);not null" json:"provider_code"`
}

func (ApiProviderCode) TableName() string {
	return "api_provider_codes"
}

// State is a telecom circle/region.
type State struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	StateName string `gorm:"type:varchar(64);not null" json:"state_name"`
	StateCode string `gorm:"type:varchar(16)" json:"state_code"`
}

func (State) TableName() string {
	return "states"
}

// AmountBlock bars a specific denomination for a provider. Checked during
// validation, before any ledger mutation.
type AmountBlock struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderID int64           `gorm:"index;not null" json:"provider_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status     int             `gorm:"not null;default:1" json:"status"`
}

func (AmountBlock) TableName() string {
	return "amount_blocks"
}
