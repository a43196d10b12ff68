package check

import (
	"errors"
	"net/http"
	"testing"

	"bankload/internal/bankapi"

	"github.com/stretchr/testify/assert"
)

func response(status int, body string) *bankapi.Response {
	return &bankapi.Response{StatusCode: status, Body: []byte(body)}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		resp  *bankapi.Response
		field string
		want  bool
	}{
		{"connection failure", &bankapi.Response{Err: errors.New("dial")}, "", false},
		{"200 without field", response(200, `{}`), "", true},
		{"200 non-json without field", response(200, `ok`), "", true},
		{"success value", response(200, `{"transactionStatus":"SUCCESS"}`), TransactionStatusField, true},
		{"success lowercase", response(200, `{"transactionStatus":"success"}`), TransactionStatusField, true},
		{"success substring", response(200, `{"transactionStatus":"TRANSFER_SUCCESSFUL"}`), TransactionStatusField, true},
		{"failed value", response(200, `{"transactionStatus":"FAILED"}`), TransactionStatusField, false},
		{"missing field", response(200, `{"other":"SUCCESS"}`), TransactionStatusField, false},
		{"null field", response(200, `{"transactionStatus":null}`), TransactionStatusField, false},
		{"non-json with field", response(200, `SUCCESS`), TransactionStatusField, false},
		{"500", response(500, `{"transactionStatus":"SUCCESS"}`), TransactionStatusField, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.resp, tt.field))
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		resp    *bankapi.Response
		ok      bool
		message string
	}{
		{"success", response(200, `{"jwtToken":"t","user":{"userId":1}}`), true, ""},
		{"missing token", response(200, `{"user":{"userId":1}}`), false, "Missing token or userId in response"},
		{"missing user id", response(200, `{"jwtToken":"t","user":{}}`), false, "Missing token or userId in response"},
		{"missing user", response(200, `{"jwtToken":"t"}`), false, "Missing token or userId in response"},
		{"bad json", response(200, `<html>`), false, ""},
		{"401", response(401, ``), false, "Invalid credentials (401)"},
		{"404", response(404, ``), false, "Login endpoint not found (404)"},
		{"500", response(500, ``), false, "Login failed with status 500"},
		{"connection", response(0, ``), false, "Connection failed - cannot reach backend. Check network configuration."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Login(tt.resp)
			assert.Equal(t, tt.ok, got.OK)
			if tt.message != "" {
				assert.Equal(t, tt.message, got.Message)
			}
			if tt.ok {
				assert.Equal(t, "t", got.Token)
				assert.Equal(t, bankapi.ID("1"), got.UserID)
			} else {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestAccounts(t *testing.T) {
	outcome, accounts := Accounts(response(200, `[{"accountno":1000001},{"accountno":1000002}]`))
	assert.True(t, outcome.OK)
	assert.Len(t, accounts, 2)

	outcome, accounts = Accounts(response(200, `{"accountno":1}`))
	assert.False(t, outcome.OK)
	assert.Nil(t, accounts)

	outcome, _ = Accounts(response(401, ``))
	assert.Equal(t, "Unauthorized - token may be invalid", outcome.Message)

	outcome, _ = Accounts(response(404, ``))
	assert.Equal(t, "User not found", outcome.Message)

	outcome, _ = Accounts(response(503, ``))
	assert.Equal(t, "Unexpected status: 503", outcome.Message)
}

func TestAccountDetail(t *testing.T) {
	assert.True(t, AccountDetail(response(200, `{"accountno":1}`)).OK)
	assert.Equal(t, "Unauthorized", AccountDetail(response(401, ``)).Message)
	assert.Equal(t, "Account not found", AccountDetail(response(404, ``)).Message)
	assert.False(t, AccountDetail(response(0, ``)).OK)
}

func TestTransfer(t *testing.T) {
	tests := []struct {
		name string
		resp *bankapi.Response
		want bool
	}{
		{"success", response(200, `{"transactionStatus":"SUCCESS"}`), true},
		{"not success", response(200, `{"transactionStatus":"PENDING"}`), false},
		{"missing status", response(200, `{}`), false},
		{"insufficient balance", response(400, `{"message":"Insufficient balance"}`), true},
		{"insufficient only", response(400, `{"error":"INSUFFICIENT_FUNDS"}`), true},
		{"balance only", response(400, `balance too low`), true},
		{"other 400", response(400, `{"message":"Invalid account"}`), false},
		{"empty 400", response(400, ``), false},
		{"401", response(401, `{"message":"balance"}`), false},
		{"connection", response(0, ``), false},
		{"500", response(500, ``), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transfer(tt.resp)
			assert.Equal(t, tt.want, got.OK, got.Message)
		})
	}
}

func TestHistory(t *testing.T) {
	assert.True(t, History(response(200, `[]`)).OK)
	assert.True(t, History(response(200, `[{"id":1}]`)).OK)
	assert.Equal(t, "Invalid response format - expected list", History(response(200, `{"id":1}`)).Message)
	assert.Equal(t, "Invalid JSON response", History(response(200, `nope`)).Message)
	assert.Equal(t, "Account not found", History(response(404, ``)).Message)
	assert.Equal(t, "Unauthorized", History(response(http.StatusUnauthorized, ``)).Message)
}

func TestFallbackHistory(t *testing.T) {
	assert.True(t, FallbackHistory(response(200, `[]`)).OK)
	assert.True(t, FallbackHistory(response(404, ``)).OK)
	assert.False(t, FallbackHistory(response(401, ``)).OK)
	assert.False(t, FallbackHistory(response(0, ``)).OK)
	assert.False(t, FallbackHistory(response(500, ``)).OK)
}
