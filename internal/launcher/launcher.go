package launcher

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// System opens URLs with the platform's default browser.
type System struct {
	// GOOS overrides runtime.GOOS.
	GOOS string

	start func(name string, args ...string) error
}

// Command returns the program and arguments used to open url.
func (s System) Command(url string) (string, []string) {
	goos := s.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "darwin":
		return "open", []string{url}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}
	default:
		return "xdg-open", []string{url}
	}
}

// Open starts the platform opener for url without waiting for it to exit.
func (s System) Open(url string) error {
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("empty url")
	}
	name, args := s.Command(url)
	start := s.start
	if start == nil {
		start = startDetached
	}
	if err := start(name, args...); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
