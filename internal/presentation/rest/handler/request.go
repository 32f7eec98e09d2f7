package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// CustomValidator echoのValidatorとして使うリクエスト検証
type CustomValidator struct {
	validate *validator.Validate
}

// NewValidator 新しいCustomValidatorを作成
// エラーメッセージにはjsonタグ名を使う
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// 整数の10進文字列（符号付き）。正負の判定はドメイン側で行う
	_ = v.RegisterValidation("int64str", func(fl validator.FieldLevel) bool {
		_, err := strconv.ParseInt(fl.Field().String(), 10, 64)
		return err == nil
	})
	// 10進小数の文字列
	_ = v.RegisterValidation("decimalstr", func(fl validator.FieldLevel) bool {
		_, err := decimal.NewFromString(fl.Field().String())
		return err == nil
	})
	return &CustomValidator{validate: v}
}

// Validate echo.Validatorの実装
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validate.Struct(i)
}

// bindAndValidate リクエストをバインドして検証する
func bindAndValidate(c echo.Context, obj interface{}) error {
	if err := c.Bind(obj); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(obj); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return echo.NewHTTPError(http.StatusBadRequest, verrs.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// tokenUserID 認証ミドルウェアが設定したユーザーIDを取得
func tokenUserID(c echo.Context) (string, error) {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "user_id not found in token")
	}
	return userID, nil
}

// pathUserID パスパラメータのユーザーIDを取得
func pathUserID(c echo.Context) (string, error) {
	userID := c.Param("user_id")
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	return userID, nil
}

// parseAmount 検証済みの10進文字列をint64に変換
func parseAmount(s string) (int64, error) {
	amount, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid amount format")
	}
	return amount, nil
}

// formatAmount 金額を10進文字列に変換
func formatAmount(v int64) string {
	return strconv.FormatInt(v, 10)
}

// pageParams limit・offsetクエリを取得（未指定は0）
func pageParams(c echo.Context) (int, int, error) {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 100 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid limit parameter")
		}
		limit = v
	}
	offset := 0
	if s := c.QueryParam("offset"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "invalid offset parameter")
		}
		offset = v
	}
	return limit, offset, nil
}

// balanceItem 残高マップをレスポンス形式に変換
func balanceItem(balances map[string]int64) BalanceItem {
	return BalanceItem{
		Diamonds: formatAmount(balances["diamonds"]),
		Tickets:  formatAmount(balances["tickets"]),
		Points:   formatAmount(balances["points"]),
	}
}
