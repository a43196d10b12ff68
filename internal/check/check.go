// Package check classifies banking API responses as passed or failed.
//
// A classification never aborts a session: the Outcome is recorded into the
// request statistics and the simulated user carries on. Expected business
// rejections, such as a transfer refused for insufficient balance, count as
// passes.
package check

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"bankload/internal/bankapi"
)

// TransactionStatusField は振込レスポンスの成否フィールド
const TransactionStatusField = "transactionStatus"

// Outcome は分類結果
type Outcome struct {
	OK      bool
	Message string // 失敗理由（成功時は空）
}

// Pass は成功を返す
func Pass() Outcome {
	return Outcome{OK: true}
}

// Fail は失敗を返す
func Fail(format string, args ...any) Outcome {
	return Outcome{Message: fmt.Sprintf(format, args...)}
}

// Validate はステータスコードと任意の成否フィールドでレスポンスを検証する
//
// 200以外は失敗。successFieldが空なら200だけで成功。
// 指定がある場合はJSONオブジェクトの該当フィールドが "SUCCESS" を
// 含む（大文字小文字は無視）ときだけ成功とする。
func Validate(resp *bankapi.Response, successField string) bool {
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if successField == "" {
		return true
	}

	var data map[string]any
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return false
	}
	value, ok := data[successField]
	if !ok || value == nil {
		return false
	}
	return strings.Contains(strings.ToUpper(fmt.Sprint(value)), "SUCCESS")
}

// connectionFailure は status 0 の失敗メッセージを返す
func connectionFailure(resp *bankapi.Response) Outcome {
	if resp.Err != nil {
		return Fail("Connection failed: %v", resp.Err)
	}
	return Fail("Connection failed")
}

// LoginResult はログイン分類の結果
type LoginResult struct {
	Outcome
	Token  string
	UserID bankapi.ID
}

// Login はログインレスポンスを分類する
// トークンとユーザーIDの両方が揃った200だけが成功
func Login(resp *bankapi.Response) LoginResult {
	switch resp.StatusCode {
	case 0:
		return LoginResult{Outcome: Fail("Connection failed - cannot reach backend. Check network configuration.")}
	case http.StatusOK:
		var body bankapi.LoginResponse
		if err := resp.JSON(&body); err != nil {
			return LoginResult{Outcome: Fail("Invalid JSON response: %v", err)}
		}
		if body.JWTToken == "" || body.User.UserID == "" {
			return LoginResult{Outcome: Fail("Missing token or userId in response")}
		}
		return LoginResult{Outcome: Pass(), Token: body.JWTToken, UserID: body.User.UserID}
	case http.StatusUnauthorized:
		return LoginResult{Outcome: Fail("Invalid credentials (401)")}
	case http.StatusNotFound:
		return LoginResult{Outcome: Fail("Login endpoint not found (404)")}
	default:
		return LoginResult{Outcome: Fail("Login failed with status %d", resp.StatusCode)}
	}
}

// Accounts は口座一覧レスポンスを分類し、成功時は口座を返す
func Accounts(resp *bankapi.Response) (Outcome, []bankapi.Account) {
	switch resp.StatusCode {
	case 0:
		return connectionFailure(resp), nil
	case http.StatusOK:
		var accounts []bankapi.Account
		if err := resp.JSON(&accounts); err != nil {
			return Fail("Invalid JSON response"), nil
		}
		return Pass(), accounts
	case http.StatusUnauthorized:
		return Fail("Unauthorized - token may be invalid"), nil
	case http.StatusNotFound:
		return Fail("User not found"), nil
	default:
		return Fail("Unexpected status: %d", resp.StatusCode), nil
	}
}

// AccountDetail は口座詳細レスポンスを分類する
func AccountDetail(resp *bankapi.Response) Outcome {
	switch resp.StatusCode {
	case 0:
		return connectionFailure(resp)
	case http.StatusOK:
		if Validate(resp, "") {
			return Pass()
		}
		return Fail("Invalid response data")
	case http.StatusUnauthorized:
		return Fail("Unauthorized")
	case http.StatusNotFound:
		return Fail("Account not found")
	default:
		return Fail("Unexpected status: %d", resp.StatusCode)
	}
}

// Transfer は振込レスポンスを分類する
// 残高不足の400は想定内の業務エラーとして成功扱い
func Transfer(resp *bankapi.Response) Outcome {
	switch resp.StatusCode {
	case 0:
		return connectionFailure(resp)
	case http.StatusOK:
		if Validate(resp, TransactionStatusField) {
			return Pass()
		}
		return Fail("Transfer did not succeed")
	case http.StatusBadRequest:
		if IsBalanceRejection(resp) {
			return Pass()
		}
		return Fail("Bad request: %s", truncate(resp.Text(), 200))
	case http.StatusUnauthorized:
		return Fail("Unauthorized")
	default:
		return Fail("Unexpected status: %d", resp.StatusCode)
	}
}

// IsBalanceRejection はボディが残高不足の拒否を示しているかを返す
func IsBalanceRejection(resp *bankapi.Response) bool {
	text := strings.ToLower(resp.Text())
	return strings.Contains(text, "insufficient") || strings.Contains(text, "balance")
}

// History は取引履歴レスポンスを分類する。200はJSON配列でなければならない
func History(resp *bankapi.Response) Outcome {
	switch resp.StatusCode {
	case 0:
		return connectionFailure(resp)
	case http.StatusOK:
		var transactions []json.RawMessage
		if err := json.Unmarshal(resp.Body, &transactions); err != nil {
			var raw json.RawMessage
			if json.Unmarshal(resp.Body, &raw) == nil {
				return Fail("Invalid response format - expected list")
			}
			return Fail("Invalid JSON response")
		}
		return Pass()
	case http.StatusUnauthorized:
		return Fail("Unauthorized")
	case http.StatusNotFound:
		return Fail("Account not found")
	default:
		return Fail("Unexpected status: %d", resp.StatusCode)
	}
}

// FallbackHistory はテスト口座への取引履歴プローブを分類する
// 口座が存在しない404も許容する
func FallbackHistory(resp *bankapi.Response) Outcome {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound {
		return Pass()
	}
	return Fail("Unexpected status: %d", resp.StatusCode)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
