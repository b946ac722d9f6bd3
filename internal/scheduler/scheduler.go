// Package scheduler 세션의 애플리케이션 상태와 알림 목록을 Cron 스케줄에 맞춰 주기적으로 갱신합니다.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/darkkaiser/pops-connect/internal/health"
	"github.com/darkkaiser/pops-connect/internal/notification"
	"github.com/darkkaiser/pops-connect/internal/session"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/pkg/cronx"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/robfig/cron/v3"
)

// component Scheduler 서비스의 로깅용 컴포넌트 이름
const component = "scheduler.service"

const (
	// DefaultSpec 기본 갱신 주기
	DefaultSpec = "@every 30s"

	// DefaultJobTimeout 갱신 한 번에 허용하는 최대 시간
	DefaultJobTimeout = 20 * time.Second
)

// Refresher 주기적으로 갱신할 세션입니다. *session.Context가 이 인터페이스를 만족합니다.
type Refresher interface {
	RefreshAppStatuses(ctx context.Context) map[suite.ID]health.Status
	IsAuthenticated() bool
	RefreshNotifications(ctx context.Context, includeRead bool) []notification.Notification
}

// 컴파일 타임에 인터페이스 구현 여부를 검증합니다.
var _ Refresher = (*session.Context)(nil)

// Option Scheduler 설정 함수
type Option func(*Scheduler)

// WithJobTimeout 갱신 한 번에 허용하는 최대 시간을 설정합니다.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithIncludeRead 알림 갱신 시 읽은 알림까지 가져오도록 설정합니다.
func WithIncludeRead(includeRead bool) Option {
	return func(s *Scheduler) {
		s.includeRead = includeRead
	}
}

// Scheduler 세션 갱신 작업을 Cron 스케줄에 맞춰 실행하는 서비스입니다.
type Scheduler struct {
	spec        string
	target      Refresher
	jobTimeout  time.Duration
	includeRead bool

	cron *cron.Cron

	running   bool
	runningMu sync.Mutex
}

// New 새로운 Scheduler 서비스 인스턴스를 생성합니다. spec이 비어 있으면 DefaultSpec을 사용합니다.
func New(spec string, target Refresher, opts ...Option) *Scheduler {
	if target == nil {
		panic("Refresher는 필수입니다")
	}
	if spec == "" {
		spec = DefaultSpec
	}

	s := &Scheduler{
		spec:       spec,
		target:     target,
		jobTimeout: DefaultJobTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 스케줄러를 시작하고 갱신 작업을 Cron 엔진에 등록합니다.
//
// 매개변수:
//   - serviceStopCtx: 서비스 종료 신호를 받기 위한 Context
//   - serviceStopWG: 서비스 종료 완료를 알리기 위한 WaitGroup
//
// 반환값:
//   - error: 갱신 대상이 없거나 Cron 표현식이 올바르지 않은 경우
func (s *Scheduler) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	applog.WithComponent(component).Info("서비스 시작 진입: Scheduler 서비스 초기화 프로세스를 시작합니다")

	if s.target == nil {
		serviceStopWG.Done()
		return ErrTargetNotInitialized
	}

	if s.running {
		serviceStopWG.Done()
		applog.WithComponent(component).Warn("Scheduler 서비스가 이미 실행 중입니다 (중복 호출)")
		return nil
	}

	// Recover: 갱신 중 panic이 나도 다음 실행은 계속됩니다.
	// SkipIfStillRunning: 이전 갱신이 끝나지 않았으면 이번 실행은 건너뜁니다.
	logger := cron.VerbosePrintfLogger(applog.StandardLogger())
	c := cron.New(
		cron.WithParser(cronx.Parser()),
		cron.WithLogger(logger),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)

	if _, err := c.AddFunc(s.spec, s.RunOnce); err != nil {
		serviceStopWG.Done()
		return NewErrInvalidCronSpec(s.spec, err)
	}

	s.cron = c
	s.cron.Start()
	s.running = true

	applog.WithComponentAndFields(component, applog.Fields{
		"spec":        s.spec,
		"job_timeout": s.jobTimeout.String(),
	}).Info("서비스 시작 완료: Scheduler 서비스가 정상적으로 초기화되었습니다")

	go func() {
		defer serviceStopWG.Done()

		<-serviceStopCtx.Done()

		s.Stop()
	}()

	return nil
}

// Stop 실행 중인 스케줄러를 중지하고, 진행 중인 갱신이 끝날 때까지 기다립니다.
func (s *Scheduler) Stop() {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()

	if !s.running {
		return
	}

	applog.WithComponent(component).Info("종료 절차 진입: Scheduler 서비스 중지 시그널을 수신했습니다")

	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}

	s.cron = nil
	s.running = false

	applog.WithComponent(component).Info("Scheduler 서비스 종료 완료: 모든 리소스가 정리되었습니다")
}

// Running 실행 여부
func (s *Scheduler) Running() bool {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	return s.running
}

// RunOnce 갱신을 한 번 실행합니다. 애플리케이션 상태는 항상, 알림은 로그인한 경우에만 갱신합니다.
//
// 서비스 종료 신호와 분리된 Context를 사용합니다. 종료 시 Stop이 진행 중인 갱신을 기다리므로
// 갱신이 중간에 끊기지 않으며, 대신 jobTimeout으로 전체 시간을 제한합니다.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()

	started := time.Now()

	statuses := s.target.RefreshAppStatuses(ctx)
	online := 0
	for _, st := range statuses {
		if st.Online() {
			online++
		}
	}

	fields := applog.Fields{
		"apps":   len(statuses),
		"online": online,
	}

	if s.target.IsAuthenticated() {
		fields["notifications"] = len(s.target.RefreshNotifications(ctx, s.includeRead))
	}

	fields["elapsed"] = time.Since(started).String()
	applog.WithComponentAndFields(component, fields).Debug("주기 갱신 완료")
}
