package stubapp

import (
	"io"

	applog "github.com/darkkaiser/pops-connect/pkg/log"
	"github.com/labstack/gommon/log"
)

// echoLogger Echo 내부 로그를 애플리케이션 로거로 보내는 어댑터입니다.
// 모든 기록에 component 필드가 붙습니다. Echo의 Prefix/Header 기능은 사용하지 않습니다.
type echoLogger struct {
	logger *applog.Logger
}

func newEchoLogger() echoLogger {
	return echoLogger{logger: applog.StandardLogger()}
}

func (l echoLogger) entry() *applog.Entry {
	return applog.WithComponent(component)
}

func (l echoLogger) entryj(j log.JSON) *applog.Entry {
	return applog.WithComponentAndFields(component, applog.Fields(j))
}

func (l echoLogger) Output() io.Writer     { return l.logger.Out }
func (l echoLogger) SetOutput(w io.Writer) { l.logger.SetOutput(w) }
func (l echoLogger) Prefix() string        { return "" }
func (l echoLogger) SetPrefix(string)      {}
func (l echoLogger) SetHeader(string)      {}

// Level 애플리케이션 로그 레벨을 Echo 레벨로 바꿉니다. 대응하는 레벨이 없으면 OFF입니다.
func (l echoLogger) Level() log.Lvl {
	switch l.logger.Level {
	case applog.TraceLevel, applog.DebugLevel:
		return log.DEBUG
	case applog.InfoLevel:
		return log.INFO
	case applog.WarnLevel:
		return log.WARN
	case applog.ErrorLevel:
		return log.ERROR
	default:
		return log.OFF
	}
}

// SetLevel Echo가 로그 레벨을 바꾸려 해도 프로세스 전체 설정을 따르므로 무시합니다.
func (l echoLogger) SetLevel(log.Lvl) {}

func (l echoLogger) Print(i ...interface{})                    { l.entry().Print(i...) }
func (l echoLogger) Printf(format string, args ...interface{}) { l.entry().Printf(format, args...) }
func (l echoLogger) Printj(j log.JSON)                         { l.entryj(j).Print() }
func (l echoLogger) Debug(i ...interface{})                    { l.entry().Debug(i...) }
func (l echoLogger) Debugf(format string, args ...interface{}) { l.entry().Debugf(format, args...) }
func (l echoLogger) Debugj(j log.JSON)                         { l.entryj(j).Debug() }
func (l echoLogger) Info(i ...interface{})                     { l.entry().Info(i...) }
func (l echoLogger) Infof(format string, args ...interface{})  { l.entry().Infof(format, args...) }
func (l echoLogger) Infoj(j log.JSON)                          { l.entryj(j).Info() }
func (l echoLogger) Warn(i ...interface{})                     { l.entry().Warn(i...) }
func (l echoLogger) Warnf(format string, args ...interface{})  { l.entry().Warnf(format, args...) }
func (l echoLogger) Warnj(j log.JSON)                          { l.entryj(j).Warn() }
func (l echoLogger) Error(i ...interface{})                    { l.entry().Error(i...) }
func (l echoLogger) Errorf(format string, args ...interface{}) { l.entry().Errorf(format, args...) }
func (l echoLogger) Errorj(j log.JSON)                         { l.entryj(j).Error() }
func (l echoLogger) Fatal(i ...interface{})                    { l.entry().Fatal(i...) }
func (l echoLogger) Fatalf(format string, args ...interface{}) { l.entry().Fatalf(format, args...) }
func (l echoLogger) Fatalj(j log.JSON)                         { l.entryj(j).Fatal() }
func (l echoLogger) Panic(i ...interface{})                    { l.entry().Panic(i...) }
func (l echoLogger) Panicf(format string, args ...interface{}) { l.entry().Panicf(format, args...) }
func (l echoLogger) Panicj(j log.JSON)                         { l.entryj(j).Panic() }
