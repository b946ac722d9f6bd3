package transport

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// Envelope 모든 suite 애플리케이션이 사용하는 응답 봉투입니다.
//
//	{"success": true, "data": {...}}
//	{"success": false, "error": "message"}
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var (
	errNotJSONObject  = errors.New("응답 본문이 JSON 객체가 아닙니다")
	errMissingSuccess = errors.New("응답 봉투에 success 필드가 없습니다")

	// errEnvelopeRejected success=false 응답입니다. 두 번째 반환값에 원격 에러 메시지가 담깁니다.
	errEnvelopeRejected = errors.New("envelope rejected")
)

// decodeEnvelope 응답 본문에서 data 부분을 꺼냅니다. data가 없으면 JSON null을 반환합니다.
func decodeEnvelope(body []byte) (json.RawMessage, string, error) {
	if !gjson.ValidBytes(body) {
		return nil, "", errNotJSONObject
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, "", errNotJSONObject
	}

	success := root.Get("success")
	if !success.Exists() {
		return nil, "", errMissingSuccess
	}
	if !success.Bool() {
		return nil, root.Get("error").String(), errEnvelopeRejected
	}

	data := root.Get("data")
	if !data.Exists() {
		return json.RawMessage("null"), "", nil
	}
	return json.RawMessage(data.Raw), "", nil
}
