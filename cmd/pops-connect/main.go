// pops-connect suite 애플리케이션의 세션을 복원하고, 상태·알림·실시간 이벤트를 계속 동기화하는 상주 프로세스입니다.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/darkkaiser/pops-connect/internal/cache"
	"github.com/darkkaiser/pops-connect/internal/config"
	"github.com/darkkaiser/pops-connect/internal/health"
	"github.com/darkkaiser/pops-connect/internal/metrics"
	"github.com/darkkaiser/pops-connect/internal/notification"
	"github.com/darkkaiser/pops-connect/internal/pkg/version"
	"github.com/darkkaiser/pops-connect/internal/realtime"
	"github.com/darkkaiser/pops-connect/internal/scheduler"
	"github.com/darkkaiser/pops-connect/internal/service"
	"github.com/darkkaiser/pops-connect/internal/session"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/darkkaiser/pops-connect/internal/transport"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
)

const banner = `
  ____    ___   ____   ____         ____                                 _
 |  _ \  / _ \ |  _ \ / ___|       / ___|  ___   _ __   _ __    ___   ___| |_
 | |_) || | | || |_) |\___ \ _____| |     / _ \ | '_ \ | '_ \  / _ \ / __| __|
 |  __/ | |_| ||  __/  ___) |_____| |___ | (_) || | | || | | ||  __/| (__| |_
 |_|     \___/ |_|    |____/       \____| \___/ |_| |_||_| |_| \___| \___|\__|
                                                                    %s
--------------------------------------------------------------------------------
`

func main() {
	// 1. 환경설정 로드 (로그 설정에 필요하므로 가장 먼저 수행한다)
	appConfig, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] 환경설정 로드 실패: %v\n", err)
		os.Exit(1)
	}

	// 2. 로그 시스템 초기화
	logCloser, err := setupLogging(appConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] 로그 시스템 초기화 실패: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	buildInfo := version.Get()
	fmt.Printf(banner, buildInfo.Version)

	applog.WithComponentAndFields("main", applog.Fields(buildInfo.Fields())).
		WithField("environment", appConfig.Environment).
		Info("초기화 시작")
	applog.WithComponent("main").Debug(appConfig.String())

	if err := run(appConfig); err != nil {
		applog.WithComponentAndFields("main", applog.Fields{
			"error": err,
		}).Error("초기화 실패로 프로그램을 종료합니다")
		logCloser.Close()
		os.Exit(1)
	}
}

func setupLogging(appConfig *config.AppConfig) (io.Closer, error) {
	opts := applog.NewProductionOptions(config.AppName)
	if appConfig.Debug {
		opts = applog.NewDevelopmentOptions(config.AppName)
	}

	closer, err := applog.Setup(opts)
	if err != nil {
		return nil, err
	}
	applog.SetDebugMode(appConfig.Debug)
	return closer, nil
}

// components 설정으로부터 조립한 구성 요소
type components struct {
	registry  *suite.Registry
	metrics   *metrics.Collectors
	transport *transport.Transport
	realtime  *realtime.Manager
	session   *session.Context
	scheduler *scheduler.Scheduler
}

// build 구성 요소를 의존 순서대로 조립합니다. 네트워크에는 접근하지 않습니다.
func build(appConfig *config.AppConfig) (*components, error) {
	registry, err := suite.NewRegistry(appConfig.SuiteEnvironment(), appConfig.Descriptors())
	if err != nil {
		return nil, err
	}

	collectors := metrics.New()

	transportOpts := []transport.Option{
		transport.WithTimeout(appConfig.Transport.Timeout),
		transport.WithCache(cache.New(appConfig.Transport.CacheTTL)),
		transport.WithObserver(collectors),
	}
	for _, l := range appConfig.Transport.RateLimits {
		transportOpts = append(transportOpts, transport.WithRateLimit(suite.ID(l.App), l.RequestsPerSecond, l.Burst))
	}
	client := transport.New(registry, transportOpts...)

	rt := realtime.NewManager(registry,
		realtime.WithHeartbeatInterval(appConfig.Realtime.HeartbeatInterval),
		realtime.WithMaxReconnectAttempts(appConfig.Realtime.MaxReconnectAttempts),
		realtime.WithReconnectDelay(appConfig.Realtime.ReconnectDelay),
		realtime.WithObserver(collectors),
	)

	storage, err := session.NewFileStorage(appConfig.Session.StoragePath)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var navigator session.Navigator = &session.LogNavigator{}
	if appConfig.Session.OpenBrowser {
		navigator = session.NewBrowserNavigator()
	}

	sc, err := session.New(session.Config{
		Registry:      registry,
		Transport:     client,
		Monitor:       health.NewMonitor(client, health.WithTimeout(appConfig.Health.Timeout), health.WithObserver(collectors)),
		Notifications: notification.NewAggregator(client, appConfig.Notifications.AppIDs()),
		Realtime:      rt,
		Storage:       storage,
		Navigator:     navigator,
		AuthApp:       suite.ID(appConfig.Session.AuthApp),
		LoginPath:     appConfig.Session.LoginPath,
		HistorySize:   appConfig.Session.HistorySize,
		StatusApps:    appConfig.Health.StatusApps(),
		UpdateApps:    appConfig.Updates.AppIDs(),
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	return &components{
		registry:  registry,
		metrics:   collectors,
		transport: client,
		realtime:  rt,
		session:   sc,
		scheduler: scheduler.New(appConfig.Health.RefreshSpec, sc),
	}, nil
}

func run(appConfig *config.AppConfig) error {
	c, err := build(appConfig)
	if err != nil {
		return err
	}
	defer c.realtime.Close()

	if c.session.RefreshAuth() {
		applog.WithComponentAndFields("main", applog.Fields{
			"user": c.session.Auth().User.Email,
		}).Info("저장된 세션을 복원했습니다")
	} else {
		applog.WithComponentAndFields("main", applog.Fields{
			"storage": appConfig.Session.StoragePath,
		}).Warn("저장된 세션이 없습니다. 인증이 필요한 알림은 로그인 후에 수집됩니다")
	}

	unsubscribe := c.session.SubscribeToUpdates(func(e realtime.Event) {
		applog.WithComponentAndFields("main", applog.Fields{
			"app":  e.App,
			"type": e.Type,
		}).Debug("실시간 이벤트 수신")
	})
	defer unsubscribe()

	serviceStopCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serviceStopWG := &sync.WaitGroup{}

	if err := start(serviceStopCtx, serviceStopWG, c, appConfig); err != nil {
		cancel()
		serviceStopWG.Wait()
		return err
	}

	termC := make(chan os.Signal, 1)
	signal.Notify(termC, syscall.SIGINT, syscall.SIGTERM)

	applog.WithComponent("main").Info("가동 완료")

	<-termC

	applog.WithComponent("main").Info("종료 신호를 받았습니다")
	cancel()
	serviceStopWG.Wait()
	return nil
}

// start 첫 갱신을 마친 뒤 백그라운드 서비스들을 시작합니다.
// 첫 갱신은 jobTimeout으로 제한되므로 시작이 무기한 지연되지 않습니다.
func start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup, c *components, appConfig *config.AppConfig) error {
	c.scheduler.RunOnce()

	services := []service.Named{{Name: "scheduler", Service: c.scheduler}}
	if appConfig.Metrics.ListenAddr != "" {
		services = append(services, service.Named{Name: "metrics", Service: metrics.NewExporter(appConfig.Metrics.ListenAddr, c.metrics)})
	}
	return service.StartAll(serviceStopCtx, serviceStopWG, services...)
}
