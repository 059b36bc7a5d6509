package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ParseJSON 解析 JSON 字符串到結構體
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v, false)
}

// ParseJSONStrict 解析 JSON 字符串到結構體（禁止未知欄位）
func ParseJSONStrict(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v, true)
}

// ParseJSONBytes 解析 JSON 位元組切片到結構體
func ParseJSONBytes(data []byte, v interface{}) error {
	return decodeJSON(bytes.NewReader(data), v, false)
}

// DecodeJSON 使用統一設定解析 JSON
func DecodeJSON(r io.Reader, v interface{}) error {
	return decodeJSON(r, v, false)
}

func decodeJSON(r io.Reader, v interface{}, disallowUnknown bool) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	for {
		t, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		// 若讀到額外 token，視為錯誤
		if t != nil {
			return fmt.Errorf("unexpected extra JSON data")
		}
	}
}

var singleQuotedPattern = regexp.MustCompile(`'([^']*)'`)

// ParseStringList 將序列化的字串清單解析為 []string
// 接受三種上游格式：JSON 陣列（["nuts","dairy"]）、python 風格清單
// （['nuts','dairy']）、以及純逗號分隔（nuts,dairy）
// 格式錯誤不默默吞掉，直接回傳 error 由呼叫端包成 DataValidationError
func ParseStringList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || strings.EqualFold(raw, "none") || strings.EqualFold(raw, "null") {
		return []string{}, nil
	}

	if strings.HasPrefix(raw, "[") {
		if !strings.HasSuffix(raw, "]") {
			return nil, fmt.Errorf("unterminated list literal: %q", raw)
		}
		// 先嘗試標準 JSON
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			return cleanStringList(out), nil
		}
		// python 風格：把單引號改寫成雙引號後重試
		rewritten := singleQuotedPattern.ReplaceAllString(raw, `"$1"`)
		if err := json.Unmarshal([]byte(rewritten), &out); err != nil {
			return nil, fmt.Errorf("malformed list literal %q: %w", raw, err)
		}
		return cleanStringList(out), nil
	}

	// 純逗號分隔
	return cleanStringList(strings.Split(raw, ",")), nil
}

// cleanStringList 去除空白並丟棄空元素
func cleanStringList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, strings.ToLower(v))
		}
	}
	return out
}

// StringSliceToString 將字符串切片轉換為逗號分隔的字符串
func StringSliceToString(slice []string) string {
	if len(slice) == 0 {
		return ""
	}
	return strings.Join(slice, ",")
}
