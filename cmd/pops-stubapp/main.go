// pops-stubapp suite 애플리케이션 하나를 흉내 내는 개발용 서버입니다.
//
//	pops-stubapp -app money               # 개발 환경 포트(3003)에서 money를 흉내 냅니다
//	pops-stubapp -app auth -addr :4001    # 포트를 직접 지정합니다
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/darkkaiser/pops-connect/internal/stubapp"
	"github.com/darkkaiser/pops-connect/internal/suite"
	applog "github.com/darkkaiser/pops-connect/pkg/log"
)

const appName = "pops-stubapp"

type options struct {
	app       suite.ID
	addr      string
	debug     bool
	rateLimit float64
	burst     int
}

// parseOptions 명령행 인자를 해석합니다. -addr이 없으면 개발 환경 주소 규칙의 포트를 사용합니다.
func parseOptions(args []string) (options, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	app := fs.String("app", "", "흉내 낼 애플리케이션 (hub, auth, travel, money, events, calendar, docs)")
	addr := fs.String("addr", "", "수신 주소 (기본값: 개발 환경 포트)")
	debug := fs.Bool("debug", false, "디버그 로그 출력")
	rateLimit := fs.Float64("rate-limit", 0, "IP별 초당 허용 요청 수 (0이면 제한 없음)")
	burst := fs.Int("burst", 10, "요청 빈도 제한의 순간 허용량")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	id, err := suite.Parse(*app)
	if err != nil {
		return options{}, err
	}

	opts := options{app: id, addr: *addr, debug: *debug, rateLimit: *rateLimit, burst: *burst}
	if opts.addr == "" {
		registry, err := suite.NewRegistry(suite.Development, nil)
		if err != nil {
			return options{}, err
		}
		d, err := registry.Lookup(id)
		if err != nil {
			return options{}, err
		}
		opts.addr = fmt.Sprintf(":%d", d.Port)
	}
	return opts, nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(2)
	}

	logCloser, err := applog.Setup(applog.NewDevelopmentOptions(appName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] 로그 시스템 초기화 실패: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	applog.SetDebugMode(opts.debug)

	srv, err := stubapp.New(stubapp.Config{
		App:                opts.app,
		Debug:              opts.debug,
		RateLimitPerSecond: opts.rateLimit,
		RateLimitBurst:     opts.burst,
	})
	if err != nil {
		applog.WithComponentAndFields("main", applog.Fields{"error": err}).Error("스텁 서버 생성 실패")
		return
	}

	serviceStopCtx, cancel := context.WithCancel(context.Background())
	serviceStopWG := &sync.WaitGroup{}

	serviceStopWG.Add(1)
	if err := srv.Start(serviceStopCtx, serviceStopWG, opts.addr); err != nil {
		cancel()
		serviceStopWG.Wait()
		return
	}

	termC := make(chan os.Signal, 1)
	signal.Notify(termC, syscall.SIGINT, syscall.SIGTERM)
	<-termC

	applog.WithComponent("main").Info("종료 신호를 받았습니다")
	cancel()
	serviceStopWG.Wait()
}
