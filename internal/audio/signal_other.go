//go:build !unix

package audio

import (
	"errors"
	"os"
)

// Without job control signals a paused process is killed and restarted
// at the remembered offset instead.
func suspend(p *os.Process) error {
	return errors.ErrUnsupported
}

func resume(p *os.Process) error {
	return errors.ErrUnsupported
}
