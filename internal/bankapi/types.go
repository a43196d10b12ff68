package bankapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ID はユーザーIDや口座番号のような不透明な識別子
// バックエンドは数値でも文字列でも返すため、どちらも受け付ける
type ID string

// UnmarshalJSON は数値・文字列どちらのJSON値も受け付ける
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON は数字のみの識別子を数値として、それ以外を文字列として出力する
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id ID) numeric() bool {
	s := string(id)
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	return strings.Trim(s, "0123456789") == ""
}

func (id ID) String() string {
	return string(id)
}

// LoginRequest はログインリクエスト
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse はログインレスポンス
type LoginResponse struct {
	JWTToken string `json:"jwtToken"`
	User     struct {
		UserID ID `json:"userId"`
	} `json:"user"`
}

// Account は口座情報（負荷試験で参照するフィールドのみ）
type Account struct {
	AccountNo ID `json:"accountno"`
}

// TransferRequest は振込リクエスト
type TransferRequest struct {
	FromAccount ID
	ToAccount   ID
	Amount      decimal.Decimal
	Description string
}

// transferPayload は送信用の形。金額は小数点以下2桁のJSON数値にする
type transferPayload struct {
	FromAccount ID          `json:"fromAccount"`
	ToAccount   ID          `json:"toAccount"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

// MarshalJSON はAPIが期待する形式でエンコードする
func (r TransferRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(transferPayload{
		FromAccount: r.FromAccount,
		ToAccount:   r.ToAccount,
		Amount:      json.Number(r.Amount.StringFixed(2)),
		Description: r.Description,
	})
}
