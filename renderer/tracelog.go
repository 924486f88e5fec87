package renderer

import (
	"log/slog"
	"strings"
	"sync"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// traceCapture collects raylib warnings while a shader is being compiled so
// a failure can be reported with the driver's log.
var traceCapture struct {
	mu       sync.Mutex
	active   bool
	warnings []string
}

var routeOnce sync.Once

// RouteTraceLog sends raylib's trace output to slog. Call before
// rl.InitWindow to capture start-up messages too.
func RouteTraceLog() {
	routeOnce.Do(func() {
		rl.SetTraceLogCallback(func(level int, text string) {
			switch rl.TraceLogLevel(level) {
			case rl.LogWarning:
				slog.Warn("raylib", "msg", text)
				captureWarning(text)
			case rl.LogError, rl.LogFatal:
				slog.Error("raylib", "msg", text)
				captureWarning(text)
			case rl.LogInfo:
				slog.Debug("raylib", "msg", text)
			}
		})
	})
}

func captureWarning(text string) {
	traceCapture.mu.Lock()
	defer traceCapture.mu.Unlock()
	if traceCapture.active {
		traceCapture.warnings = append(traceCapture.warnings, text)
	}
}

func beginCapture() {
	traceCapture.mu.Lock()
	traceCapture.active = true
	traceCapture.warnings = traceCapture.warnings[:0]
	traceCapture.mu.Unlock()
}

// endCapture stops capturing and returns the warnings, joined, if any
// mention a failure.
func endCapture() (log string, failed bool) {
	traceCapture.mu.Lock()
	defer traceCapture.mu.Unlock()
	traceCapture.active = false

	for _, w := range traceCapture.warnings {
		if strings.Contains(w, "Failed") || strings.Contains(w, "error") {
			failed = true
		}
	}
	return strings.Join(traceCapture.warnings, "\n"), failed
}
