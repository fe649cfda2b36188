//go:build windows

package launcher

import "os"

// Windows has no SIGTERM for console children; terminate is a kill.
func terminate(p *os.Process) error {
	return p.Kill()
}

func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	return ps.ExitCode()
}
