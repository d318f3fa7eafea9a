//go:build unix

package audio

import (
	"os"
	"syscall"
)

// suspend stops the player process in place so it can be resumed later
func suspend(p *os.Process) error {
	return p.Signal(syscall.SIGSTOP)
}

// resume continues a suspended player process
func resume(p *os.Process) error {
	return p.Signal(syscall.SIGCONT)
}
