package segment

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
)

// DebugLogsEnabled toggles per-path tracing of the execution engine. It is
// off by default; setting EVMSEG_DEBUG=1 turns it on.
var DebugLogsEnabled = false

func init() {
	if v := os.Getenv("EVMSEG_DEBUG"); v == "1" || v == "true" {
		DebugLogsEnabled = true
	}
}

// EnableDebugLogs toggles per-path tracing.
func EnableDebugLogs(on bool) { DebugLogsEnabled = on }

func debugTrace(msg string, ctx ...interface{}) {
	if DebugLogsEnabled {
		log.Trace(msg, ctx...)
	}
}
