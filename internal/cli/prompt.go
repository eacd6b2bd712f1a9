package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"unicode"

	"github.com/chzyer/readline"
)

var stdinReader = bufio.NewReader(os.Stdin)
var ansiEscapeRE = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
var caretEscapeRE = regexp.MustCompile(`\^\[\[[0-9;?]*[ -/]*[@-~]`)

// readLineFn is swapped in tests.
var readLineFn = readLineEditable

func askString(msg, def string) string {
	def = strings.TrimSpace(os.ExpandEnv(def))
	prompt := fmt.Sprintf("  %s: ", msg)
	if def != "" {
		prompt = fmt.Sprintf("  %s [\033[36m%s\033[0m]: ", msg, def)
	}
	s := readLineClean(prompt, false)
	if s == "" {
		return def
	}
	return s
}

// askSecret reads a value with the input masked. required re-prompts on
// empty input.
func askSecret(msg string, required bool) string {
	for {
		s := readLineClean(fmt.Sprintf("  %s: ", msg), true)
		if s != "" || !required {
			return s
		}
		fmt.Println("  A value is required.")
	}
}

func askBool(msg string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		s := strings.ToLower(readLineClean(fmt.Sprintf("  %s %s: ", msg, hint), false))
		switch s {
		case "":
			return def
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Println("  Please answer yes or no.")
	}
}

func readLineClean(prompt string, mask bool) string {
	raw := readLineFn(prompt, mask)
	raw = ansiEscapeRE.ReplaceAllString(raw, "")
	raw = caretEscapeRE.ReplaceAllString(raw, "")
	raw = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(raw)
}

func readLineEditable(prompt string, mask bool) string {
	rl, err := readline.NewEx(&readline.Config{Prompt: prompt, EnableMask: mask, MaskRune: '•'})
	if err == nil {
		cleanup := func() {
			_ = rl.Close()
			// readline consumed stdin bytes behind the bufio reader's back.
			stdinReader.Reset(os.Stdin)
		}
		line, err := rl.Readline()
		if err == nil {
			cleanup()
			return line
		}
		if errors.Is(err, readline.ErrInterrupt) {
			// The interrupt handler may os.Exit, which skips defers.
			cleanup()
			if p, findErr := os.FindProcess(os.Getpid()); findErr == nil {
				_ = p.Signal(os.Interrupt)
			}
			return ""
		}
		cleanup()
	}
	fmt.Print(prompt)
	raw, _ := stdinReader.ReadString('\n')
	return raw
}

// startInterruptHandler exits cleanly on Ctrl+C while plain prompts own the
// terminal. The returned func stops it.
func startInterruptHandler() func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nCancelled.")
			restoreTTYOnExit()
			os.Exit(130)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
