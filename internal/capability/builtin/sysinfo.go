package builtin

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/volumeee/zenclaw-sub000/internal/capability"
)

// NewSystemInfo returns the system_info capability.
func NewSystemInfo() capability.Func {
	return capability.Func{
		FuncName:        "system_info",
		FuncDescription: "Report the operating system, architecture, CPU count, hostname and working directory of the host.",
		Fn: func(context.Context, string) (string, error) {
			hostname, err := os.Hostname()
			if err != nil {
				hostname = "unknown"
			}
			wd, err := os.Getwd()
			if err != nil {
				wd = "unknown"
			}

			var b strings.Builder
			fmt.Fprintf(&b, "OS: %s\n", runtime.GOOS)
			fmt.Fprintf(&b, "Arch: %s\n", runtime.GOARCH)
			fmt.Fprintf(&b, "CPUs: %d\n", runtime.NumCPU())
			fmt.Fprintf(&b, "Hostname: %s\n", hostname)
			fmt.Fprintf(&b, "Working directory: %s\n", wd)
			fmt.Fprintf(&b, "Go runtime: %s", runtime.Version())
			return b.String(), nil
		},
	}
}
