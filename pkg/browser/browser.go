// Package browser opens Instagram security checkpoint pages in the user's
// default browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// launch starts an external program without waiting for it.
var launch = func(name string, args ...string) error {
	return exec.Command(name, args...).Start() // #nosec G204 -- URL validated by Open
}

// Resolve turns a checkpoint reference returned by the API, which may be a
// bare path, into an absolute URL on base.
func Resolve(base, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty checkpoint URL")
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// Open opens urlString in the default browser. Only http and https URLs are
// passed to the system.
func Open(urlString string) error {
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https allowed)", parsedURL.Scheme)
	}

	name, args, err := command(runtime.GOOS, urlString)
	if err != nil {
		return err
	}
	return launch(name, args...)
}

func command(goos, urlString string) (string, []string, error) {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return "xdg-open", []string{urlString}, nil
	case "darwin":
		return "open", []string{urlString}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", urlString}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}
