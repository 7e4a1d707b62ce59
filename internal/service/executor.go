package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"rechargehub/internal/model"
)

// Outcome is the upstream response normalized to the internal status
// vocabulary plus the references the upstream reported back.
type Outcome struct {
	Status        string
	OperatorID    string
	ApiOperatorID string
	Remark        string
}

// FieldMapping is one API's response vocabulary: which field carries the
// status, which literals mean what, and where the upstream's references
// live. Interpretation is entirely data-driven so a new upstream is an
// insert, not a deploy.
type FieldMapping struct {
	StatusField   string
	SuccessValue  string
	FailedValue   string
	PendingValue  string
	RefundValue   string
	ErrorField    string
	ErrorResponse string
	OrderIDField  string
	OperatorField string
}

func mappingFromApi(api *model.Api) FieldMapping {
	return FieldMapping{
		StatusField:   api.StatusValue,
		SuccessValue:  api.SuccessValue,
		FailedValue:   api.FailedValue,
		PendingValue:  api.PendingValue,
		RefundValue:   api.RefundValue,
		ErrorField:    api.ErrorValue,
		ErrorResponse: api.ErrorResponse,
		OrderIDField:  api.OrderIDValue,
		OperatorField: api.OperatorIDValue,
	}
}

// Classify maps one parsed upstream response to an internal status.
// Precedence: a missing status field leaves the order Pending; an explicit
// success literal wins; an explicit failed or refund literal fails it; the
// dedicated error field can also fail it; anything else stays Pending until
// the callback or the sweep job resolves it.
func (m FieldMapping) Classify(body map[string]interface{}) Outcome {
	out := Outcome{
		Status:        model.StatusPending,
		OperatorID:    stringField(body, m.OperatorField),
		ApiOperatorID: stringField(body, m.OrderIDField),
	}

	status, ok := lookupField(body, m.StatusField)
	if !ok {
		out.Remark = "Transaction Pending"
		return out
	}
	statusText := valueToString(status)

	switch {
	case equalsFold(statusText, m.SuccessValue):
		out.Status = model.StatusSuccess
		out.Remark = "Transaction Successful"
	case equalsFold(statusText, m.FailedValue), equalsFold(statusText, m.RefundValue):
		out.Status = model.StatusFailed
		out.Remark = "Transaction Failed"
	case equalsFold(stringField(body, m.ErrorField), m.ErrorResponse):
		out.Status = model.StatusFailed
		out.Remark = "Transaction Failed"
	default:
		out.Remark = "Transaction Pending"
	}
	return out
}

// CallbackMapping is the asynchronous-push vocabulary of one API. Upstreams
// that never configured dedicated callback literals usually fall back to
// plain English words, so those are accepted as well.
type CallbackMapping struct {
	SuccessValue string
	FailedValue  string
	PendingValue string
	RefundValue  string
}

func callbackMappingFromApi(api *model.Api) CallbackMapping {
	return CallbackMapping{
		SuccessValue: api.CallbackSuccessValue,
		FailedValue:  api.CallbackFailedValue,
		PendingValue: api.CallbackPendingValue,
		RefundValue:  api.CallbackRefundValue,
	}
}

// Classify maps a raw callback status to the internal vocabulary. The empty
// string means the value was not recognized.
func (m CallbackMapping) Classify(raw string) string {
	switch {
	case equalsFold(raw, m.SuccessValue), strings.EqualFold(raw, "Success"):
		return model.StatusSuccess
	case equalsFold(raw, m.FailedValue), strings.EqualFold(raw, "Failed"), strings.EqualFold(raw, "Failure"):
		return model.StatusFailed
	case equalsFold(raw, m.PendingValue), strings.EqualFold(raw, "Pending"):
		return model.StatusPending
	}
	return ""
}

// IsRefundSignal reports whether the raw callback value is this API's
// explicit refund literal. Only this signal may move a settled order to
// Refunded.
func (m CallbackMapping) IsRefundSignal(raw string) bool {
	return equalsFold(raw, m.RefundValue)
}

// ApiExecutor renders an API's URL template for one order, performs the
// HTTP call and normalizes the response. It never touches the ledger: a
// transport failure is reported as Failed and an unparseable body as
// Pending, and the caller decides what that means for the money.
type ApiExecutor struct {
	apis   ApiReader
	client *http.Client
}

func NewApiExecutor(apis ApiReader, client *http.Client) *ApiExecutor {
	return &ApiExecutor{apis: apis, client: client}
}

func (e *ApiExecutor) Execute(ctx context.Context, apiID, providerID int64, order *model.Report) Outcome {
	api, err := e.apis.GetApi(ctx, apiID)
	if err != nil {
		log.Printf("[Executor] api %d lookup failed for order %s: %v", apiID, order.OrderID, err)
		return Outcome{Status: model.StatusFailed, Remark: "server under maintenance"}
	}
	if api.Status != model.ApiStatusEnabled {
		return Outcome{Status: model.StatusFailed, Remark: "server under maintenance"}
	}

	providerCode, err := e.apis.GetProviderCode(ctx, apiID, providerID)
	if err != nil {
		log.Printf("[Executor] provider code lookup failed (api=%d provider=%d): %v", apiID, providerID, err)
		return Outcome{Status: model.StatusFailed, Remark: "server under maintenance"}
	}
	if providerCode == "" {
		// Configuration gap: this API has no operator code for the
		// provider, so the call would be rejected upstream anyway.
		return Outcome{Status: model.StatusFailed, Remark: "operator not mapped for api"}
	}

	stateCode, err := e.apis.GetStateCode(ctx, order.StateID)
	if err != nil {
		log.Printf("[Executor] state code lookup failed (state=%d): %v", order.StateID, err)
		stateCode = ""
	}

	url := renderURL(api, order, providerCode, stateCode)

	method := strings.ToUpper(strings.TrimSpace(api.ApiMethod))
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		log.Printf("[Executor] bad request for order %s via api %d: %v", order.OrderID, apiID, err)
		return Outcome{Status: model.StatusFailed, Remark: "server under maintenance"}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		log.Printf("[Executor] upstream call failed for order %s via api %d: %v", order.OrderID, apiID, err)
		return Outcome{Status: model.StatusFailed, Remark: "server under maintenance"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		log.Printf("[Executor] reading response failed for order %s: %v", order.OrderID, err)
		return Outcome{Status: model.StatusFailed, Remark: "server under maintenance"}
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		// The call reached the upstream but the answer is opaque. Money may
		// have moved there, so the order must stay Pending for the
		// callback or the sweep to resolve.
		log.Printf("[Executor] unparseable response for order %s via api %d: %.200s", order.OrderID, apiID, string(body))
		return Outcome{Status: model.StatusPending, Remark: "Transaction Pending"}
	}

	outcome := mappingFromApi(api).Classify(parsed)
	log.Printf("[Executor] order %s via api %d classified %s", order.OrderID, apiID, outcome.Status)
	return outcome
}

// renderURL substitutes the credential and order placeholders an API's URL
// template may carry.
func renderURL(api *model.Api, order *model.Report, providerCode, stateCode string) string {
	r := strings.NewReplacer(
		"{API_USERNAME}", api.ApiUsername,
		"{API_PASSWORD}", api.ApiPassword,
		"{API_KEY}", api.ApiKey,
		"{NUMBER}", order.Number,
		"{PROVIDER_CODE}", providerCode,
		"{STATE_CODE}", stateCode,
		"{AMOUNT}", order.Amount.String(),
		"{ORDER_ID}", order.OrderID,
	)
	return r.Replace(api.ApiURL)
}

func lookupField(body map[string]interface{}, field string) (interface{}, bool) {
	if field == "" {
		return nil, false
	}
	v, ok := body[field]
	return v, ok
}

func stringField(body map[string]interface{}, field string) string {
	v, ok := lookupField(body, field)
	if !ok {
		return ""
	}
	return valueToString(v)
}

func valueToString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers arrive as float64; integral values print clean.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// equalsFold compares case-insensitively but treats an empty configured
// literal as never matching, so a blank mapping column cannot swallow
// empty response values.
func equalsFold(got, configured string) bool {
	if configured == "" {
		return false
	}
	return strings.EqualFold(got, configured)
}
