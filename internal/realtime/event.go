package realtime

import (
	"encoding/json"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/tidwall/gjson"
)

// EventType 이벤트 봉투의 type 값입니다.
type EventType string

const (
	EventNotification EventType = "notification"
	EventStatusChange EventType = "status_change"
	EventDataUpdate   EventType = "data_update"
	EventPing         EventType = "ping"
	EventPong         EventType = "pong"
)

// Wildcard 모든 이벤트를 받는 토픽입니다.
const Wildcard = "*"

// Known 알려진 이벤트 종류인지 확인합니다. 알 수 없는 종류도 전달은 됩니다.
func (t EventType) Known() bool {
	switch t {
	case EventNotification, EventStatusChange, EventDataUpdate, EventPing, EventPong:
		return true
	}
	return false
}

// Event 실시간 채널로 수신한 이벤트입니다. {"type": "...", ...payload} 형태의 원본을 그대로 보관합니다.
type Event struct {
	App  suite.ID
	Type EventType
	Raw  json.RawMessage
}

// Get 원본에서 gjson 경로로 값을 꺼냅니다.
func (e Event) Get(path string) gjson.Result {
	return gjson.GetBytes(e.Raw, path)
}

// Decode 원본을 v에 디코딩합니다.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Raw, v); err != nil {
		return apperrors.Wrapf(err, apperrors.Parsing, "%s 애플리케이션의 %s 이벤트를 해석할 수 없습니다", e.App, e.Type)
	}
	return nil
}

// StatusChange status_change 이벤트의 내용입니다.
type StatusChange struct {
	App    suite.ID `json:"app"`
	Status string   `json:"status"`
}

// DataUpdate data_update 이벤트의 내용입니다.
type DataUpdate struct {
	Entity string          `json:"entity"`
	ID     string          `json:"id"`
	Data   json.RawMessage `json:"data"`
}

// ParseEvent 수신한 메시지를 이벤트로 해석합니다.
// JSON 객체가 아니거나 type이 비어 있으면 Parsing 에러를 반환합니다.
func ParseEvent(app suite.ID, data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return Event{}, apperrors.Newf(apperrors.Parsing, "%s 애플리케이션에서 JSON이 아닌 메시지를 수신했습니다", app)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Event{}, apperrors.Newf(apperrors.Parsing, "%s 애플리케이션에서 객체가 아닌 메시지를 수신했습니다", app)
	}
	typ := root.Get("type")
	if typ.Type != gjson.String || typ.Str == "" {
		return Event{}, apperrors.Newf(apperrors.Parsing, "%s 애플리케이션의 메시지에 type이 없습니다", app)
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Event{App: app, Type: EventType(typ.Str), Raw: raw}, nil
}

// pingMessage 하트비트로 보내는 메시지입니다.
var pingMessage = []byte(`{"type":"ping"}`)
