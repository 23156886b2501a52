// Package hostinfo reports what a worker tells the coordinator during
// discovery: CPU count, host name and process id.
package hostinfo

import (
	"os"
	"runtime"

	"github.com/viant/spawnvm/protocol"
)

// HostnameFunc resolves the host name; tests override it to simulate several hosts.
var HostnameFunc = os.Hostname

// Discover returns the local discovery reply
func Discover() *protocol.NCPU {
	name, err := HostnameFunc()
	if err != nil || name == "" {
		name = "localhost"
	}
	return &protocol.NCPU{
		CPUCount: runtime.NumCPU(),
		HostName: name,
		PID:      os.Getpid(),
	}
}
