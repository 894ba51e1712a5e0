package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter writes fx container events through the levelled logger.
// Wiring detail goes to DEBUG; only start, stop and failures reach INFO or above.
type FxLoggerAdapter struct{}

func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Wiring: cannot provide %s: %v", hookName(e.ConstructorName), e.Err)
			return
		}
		Debugf("Wiring: %s provides %s", hookName(e.ConstructorName), strings.Join(e.OutputTypeNames, ", "))
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Wiring: cannot supply %s: %v", e.TypeName, e.Err)
			return
		}
		Debugf("Wiring: supplied %s", e.TypeName)
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Wiring: %s failed: %v", hookName(e.FunctionName), e.Err)
		}
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("Startup hook %s failed: %v", hookName(e.FunctionName), e.Err)
			return
		}
		Debugf("Startup hook %s done in %s", hookName(e.FunctionName), e.Runtime)
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("Shutdown hook %s failed: %v", hookName(e.FunctionName), e.Err)
			return
		}
		Debugf("Shutdown hook %s done in %s", hookName(e.FunctionName), e.Runtime)
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Service failed to start: %v", e.Err)
			return
		}
		Infof("Service started.")
	case *fxevent.RollingBack:
		Errorf("Service failed to start, undoing startup hooks: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Undoing startup hooks failed: %v", e.Err)
		}
	case *fxevent.Stopping:
		Infof("Received %s, stopping the service.", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Service stopped with error: %v", e.Err)
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("Container logger failed: %v", e.Err)
		}
	}
}

// hookName drops the package path and the ".funcN" suffix fx reports for closures.
func hookName(fn string) string {
	if i := strings.LastIndex(fn, ".func"); i != -1 {
		fn = fn[:i]
	}
	if i := strings.LastIndex(fn, "/"); i != -1 {
		fn = fn[i+1:]
	}
	return fn
}
