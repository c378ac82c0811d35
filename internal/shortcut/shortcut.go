// Package shortcut opens named external automations on the client device.
package shortcut

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
)

const runShortcut = "shortcuts://run-shortcut"

// ErrNoName is returned for an empty automation name.
var ErrNoName = errors.New("shortcut: automation name is required")

// URI returns the link that runs the automation called name.
func URI(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNoName
	}
	escaped := strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
	return runShortcut + "?name=" + escaped, nil
}

// Launcher navigates to an automation URI. Launching is fire-and-forget:
// callers never observe what the automation does.
type Launcher interface {
	Launch(ctx context.Context, uri string) error
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, uri string) error

func (f LauncherFunc) Launch(ctx context.Context, uri string) error { return f(ctx, uri) }

// NavigationLauncher queues URIs for the browser front-end, which follows
// them on its next refresh.
type NavigationLauncher struct {
	mu      sync.Mutex
	pending []string
}

func (n *NavigationLauncher) Launch(_ context.Context, uri string) error {
	n.mu.Lock()
	n.pending = append(n.pending, uri)
	n.mu.Unlock()
	return nil
}

// Take returns and clears the queued URIs.
func (n *NavigationLauncher) Take() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	return out
}
