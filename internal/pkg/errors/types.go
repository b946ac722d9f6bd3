package errors

//go:generate stringer -type=ErrorType

// ErrorType 에러를 분류하는 타입입니다.
//
// 교차 도메인 통신에서 발생하는 실패는 모두 아래 타입 중 하나로 정규화되며,
// 호출자는 Is 함수로 타입을 검사하여 재시도, 오프라인 처리, 재로그인 등의 분기를 결정합니다.
type ErrorType int

const (
	// Unknown 분류되지 않은 에러
	Unknown ErrorType = iota

	// Internal 내부 로직 오류 (버그 등)
	Internal

	// InvalidInput 잘못된 입력값 또는 설정값
	InvalidInput

	// NotFound 요청한 리소스 또는 애플리케이션을 찾을 수 없음
	NotFound

	// Unauthorized 인증 실패 (잘못된 자격증명 등)
	Unauthorized

	// Timeout 요청 시간 초과
	Timeout

	// HTTP 원격 애플리케이션이 2xx 이외의 상태 코드로 응답함
	HTTP

	// Network 연결 거부, DNS 실패, 요청 중단 등 전송 계층 오류
	Network

	// Parsing 응답 또는 이벤트 본문을 해석할 수 없음
	Parsing

	// Remote 원격 애플리케이션이 응답 봉투에 success=false를 담아 보냄
	Remote

	// AuthExpired 저장된 세션의 만료 시각이 이미 지남
	AuthExpired

	// Unavailable 서비스 또는 채널을 일시적으로 사용할 수 없음
	Unavailable
)
