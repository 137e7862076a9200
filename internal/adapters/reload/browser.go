package reload

import (
	"os/exec"

	"github.com/pkg/browser"
	"go.trai.ch/zerr"
)

// Browser names with special meaning.
const (
	BrowserDefault = "default"
	BrowserNone    = "none"
)

// Opener launches a browser on url.
type Opener func(name, url string) error

// OpenBrowser opens url with the named executable, or the system browser for
// BrowserDefault. The launched process is not waited for.
func OpenBrowser(name, url string) error {
	switch name {
	case "", BrowserDefault:
		return browser.OpenURL(url)
	case BrowserNone:
		return nil
	}

	//nolint:gosec // The browser executable comes from the project configuration
	cmd := exec.Command(name, url)
	if err := cmd.Start(); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open browser"), "browser", name)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
