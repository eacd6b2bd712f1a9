//go:build !windows

package cli

import (
	"os"
	"os/exec"
	"syscall"
	"time"
)

const drainQuiet = 80 * time.Millisecond

// drainStdin discards bytes the terminal sends after survey or bubbletea
// rendering (cursor position reports and the like) so they don't show up in
// the next prompt.
func drainStdin() {
	fd := int(os.Stdin.Fd())
	if err := syscall.SetNonblock(fd, true); err != nil {
		stdinReader.Reset(os.Stdin)
		return
	}
	defer func() {
		_ = syscall.SetNonblock(fd, false)
		stdinReader.Reset(os.Stdin)
	}()

	buf := make([]byte, 256)
	deadline := time.Now().Add(drainQuiet)
	for time.Now().Before(deadline) {
		n, err := syscall.Read(fd, buf)
		switch {
		case n > 0:
			deadline = time.Now().Add(drainQuiet)
		case err == syscall.EAGAIN || err == syscall.EWOULDBLOCK:
			time.Sleep(10 * time.Millisecond)
		default:
			return
		}
	}
}

// restoreTTYOnExit puts the terminal back into cooked mode before an exit
// that skips defers.
func restoreTTYOnExit() {
	fd := int(os.Stdin.Fd())
	_ = syscall.SetNonblock(fd, false)
	stdinReader.Reset(os.Stdin)

	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	_ = cmd.Run()
}
