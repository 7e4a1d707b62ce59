package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"rechargehub/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapping() FieldMapping {
	return FieldMapping{
		StatusField:   "status",
		SuccessValue:  "1",
		FailedValue:   "2",
		RefundValue:   "3",
		ErrorField:    "error",
		ErrorResponse: "true",
		OrderIDField:  "txid",
		OperatorField: "opid",
	}
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{
			name: "missing status field stays pending",
			body: map[string]interface{}{"message": "accepted"},
			want: model.StatusPending,
		},
		{
			name: "success literal",
			body: map[string]interface{}{"status": "1"},
			want: model.StatusSuccess,
		},
		{
			name: "success as number",
			body: map[string]interface{}{"status": float64(1)},
			want: model.StatusSuccess,
		},
		{
			name: "failed literal",
			body: map[string]interface{}{"status": "2"},
			want: model.StatusFailed,
		},
		{
			name: "refund literal counts as failed synchronously",
			body: map[string]interface{}{"status": "3"},
			want: model.StatusFailed,
		},
		{
			name: "error field fails an unknown status",
			body: map[string]interface{}{"status": "weird", "error": "true"},
			want: model.StatusFailed,
		},
		{
			name: "success wins over error field",
			body: map[string]interface{}{"status": "1", "error": "true"},
			want: model.StatusSuccess,
		},
		{
			name: "unknown status without error stays pending",
			body: map[string]interface{}{"status": "processing"},
			want: model.StatusPending,
		},
	}

	m := testMapping()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := m.Classify(tt.body)
			assert.Equal(t, tt.want, out.Status)
		})
	}
}

func TestClassifyExtractsReferences(t *testing.T) {
	out := testMapping().Classify(map[string]interface{}{
		"status": "1",
		"opid":   "OP-77",
		"txid":   float64(123456),
	})
	assert.Equal(t, "OP-77", out.OperatorID)
	assert.Equal(t, "123456", out.ApiOperatorID)
}

func TestClassifyEmptyMappingColumnsNeverMatch(t *testing.T) {
	m := FieldMapping{StatusField: "status"}
	// With no literals configured, an empty status value must not be
	// swallowed by a blank success/failed column.
	out := m.Classify(map[string]interface{}{"status": ""})
	assert.Equal(t, model.StatusPending, out.Status)
}

func executorEnv(apiURL string) (*fakeReference, *model.Api) {
	ref := newFakeReference()
	api := &model.Api{
		ID:              10,
		Status:          model.ApiStatusEnabled,
		ApiURL:          apiURL,
		ApiMethod:       "GET",
		StatusValue:     "status",
		SuccessValue:    "1",
		FailedValue:     "2",
		OrderIDValue:    "txid",
		OperatorIDValue: "opid",
		ApiUsername:     "user1",
		ApiKey:          "key1",
	}
	ref.apis[10] = api
	ref.providerCodes["10/1"] = "AT"
	ref.stateCodes[40] = "MH"
	return ref, api
}

func sampleOrder() *model.Report {
	return &model.Report{
		OrderID: "RCH1",
		StateID: 40,
		Number:  "9876543210",
		Amount:  decimal.RequireFromString("50"),
	}
}

func TestExecuteRendersPlaceholdersAndClassifies(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"status":"1","opid":"OP-1","txid":"UP-9"}`))
	}))
	defer srv.Close()

	ref, _ := executorEnv(srv.URL + "?user={API_USERNAME}&key={API_KEY}&num={NUMBER}&op={PROVIDER_CODE}&circle={STATE_CODE}&amt={AMOUNT}&ref={ORDER_ID}")
	exec := NewApiExecutor(ref, srv.Client())

	out := exec.Execute(context.Background(), 10, 1, sampleOrder())

	assert.Equal(t, model.StatusSuccess, out.Status)
	assert.Equal(t, "OP-1", out.OperatorID)
	assert.Equal(t, "UP-9", out.ApiOperatorID)

	assert.Equal(t, []string{"user1"}, gotQuery["user"])
	assert.Equal(t, []string{"key1"}, gotQuery["key"])
	assert.Equal(t, []string{"9876543210"}, gotQuery["num"])
	assert.Equal(t, []string{"AT"}, gotQuery["op"])
	assert.Equal(t, []string{"MH"}, gotQuery["circle"])
	assert.Equal(t, []string{"50"}, gotQuery["amt"])
	assert.Equal(t, []string{"RCH1"}, gotQuery["ref"])
}

func TestExecuteTransportFailureIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := srv.Client()
	srv.Close() // connection refused from here on

	ref, _ := executorEnv(srv.URL)
	exec := NewApiExecutor(ref, client)

	out := exec.Execute(context.Background(), 10, 1, sampleOrder())
	assert.Equal(t, model.StatusFailed, out.Status)
	assert.Equal(t, "server under maintenance", out.Remark)
}

func TestExecuteUnparseableBodyStaysPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer srv.Close()

	ref, _ := executorEnv(srv.URL)
	exec := NewApiExecutor(ref, srv.Client())

	// The call reached the upstream; money may have moved, so no failure.
	out := exec.Execute(context.Background(), 10, 1, sampleOrder())
	assert.Equal(t, model.StatusPending, out.Status)
}

func TestExecuteUnmappedProviderFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream must not be called without a provider code")
	}))
	defer srv.Close()

	ref, _ := executorEnv(srv.URL)
	delete(ref.providerCodes, "10/1")
	exec := NewApiExecutor(ref, srv.Client())

	out := exec.Execute(context.Background(), 10, 1, sampleOrder())
	assert.Equal(t, model.StatusFailed, out.Status)
	assert.Equal(t, "operator not mapped for api", out.Remark)
}

func TestExecuteDisabledApiFails(t *testing.T) {
	ref, api := executorEnv("http://127.0.0.1:0")
	api.Status = model.ApiStatusDisabled
	exec := NewApiExecutor(ref, http.DefaultClient)

	out := exec.Execute(context.Background(), 10, 1, sampleOrder())
	assert.Equal(t, model.StatusFailed, out.Status)
}

func TestCallbackMappingClassify(t *testing.T) {
	m := CallbackMapping{SuccessValue: "OK", FailedValue: "KO", RefundValue: "RF"}

	assert.Equal(t, model.StatusSuccess, m.Classify("OK"))
	assert.Equal(t, model.StatusFailed, m.Classify("ko"))
	assert.Equal(t, model.StatusSuccess, m.Classify("Success"))
	assert.Equal(t, model.StatusFailed, m.Classify("Failure"))
	assert.Equal(t, model.StatusPending, m.Classify("Pending"))
	assert.Equal(t, "", m.Classify("garbage"))

	assert.True(t, m.IsRefundSignal("RF"))
	assert.False(t, m.IsRefundSignal("OK"))

	require.Equal(t, "", CallbackMapping{}.Classify(""))
}
