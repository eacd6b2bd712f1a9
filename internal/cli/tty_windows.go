//go:build windows

package cli

func drainStdin() {}

func restoreTTYOnExit() {}
