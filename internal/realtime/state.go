package realtime

// State 애플리케이션별 실시간 채널의 연결 상태입니다.
type State int

const (
	// Disconnected 연결이 없고 재연결도 예약되어 있지 않습니다.
	Disconnected State = iota

	// Connecting 처음 연결을 시도하는 중입니다.
	Connecting

	// Connected 연결되어 이벤트를 수신하고 있습니다.
	Connected

	// Reconnecting 연결이 끊겨 재연결을 기다리거나 시도하는 중입니다.
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
