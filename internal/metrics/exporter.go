package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// component 로깅용 컴포넌트 이름
const component = "metrics.exporter"

const exporterShutdownTimeout = 5 * time.Second

// Exporter /metrics 경로로 지표를 노출하는 HTTP 서버입니다.
type Exporter struct {
	addr       string
	collectors *Collectors

	runningMu sync.Mutex
	running   bool
}

// NewExporter addr에서 collectors를 노출할 서버를 생성합니다.
func NewExporter(addr string, collectors *Collectors) *Exporter {
	if collectors == nil {
		panic("Collectors는 필수입니다")
	}
	return &Exporter{addr: addr, collectors: collectors}
}

func (x *Exporter) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.GET("/metrics", echo.WrapHandler(x.collectors.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return e
}

// Start 서버를 띄우고 serviceStopCtx가 취소되면 종료합니다.
func (x *Exporter) Start(serviceStopCtx context.Context, serviceStopWG *sync.WaitGroup) error {
	x.runningMu.Lock()
	defer x.runningMu.Unlock()

	if x.running {
		defer serviceStopWG.Done()
		applog.WithComponent(component).Warn("지표 서버가 이미 실행 중입니다 (중복 호출)")
		return nil
	}
	x.running = true

	e := x.newEcho()
	done := make(chan struct{})
	go func() {
		defer close(done)

		err := e.Start(x.addr)
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			applog.WithComponent(component).Info("지표 서버 종료")
			return
		}
		applog.WithComponentAndFields(component, applog.Fields{
			"addr":  x.addr,
			"error": err,
		}).Error("지표 서버 실행 중 오류가 발생했습니다")
	}()

	go func() {
		defer serviceStopWG.Done()

		select {
		case <-serviceStopCtx.Done():
		case <-done:
		}

		ctx, cancel := context.WithTimeout(context.Background(), exporterShutdownTimeout)
		defer cancel()
		_ = e.Shutdown(ctx)
		<-done

		x.runningMu.Lock()
		x.running = false
		x.runningMu.Unlock()
	}()

	applog.WithComponentAndFields(component, applog.Fields{
		"addr": x.addr,
	}).Info("지표 서버 시작")

	return nil
}
