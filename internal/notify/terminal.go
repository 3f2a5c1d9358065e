package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// TerminalChannel prints alerts to a terminal as they happen during a check.
type TerminalChannel struct {
	out          io.Writer
	mu           sync.Mutex
	bellEnabled  bool
	colorEnabled bool
}

// NewTerminalChannel creates a TerminalChannel writing to out.
func NewTerminalChannel(out io.Writer, colorEnabled bool) *TerminalChannel {
	return &TerminalChannel{
		out:          out,
		bellEnabled:  true,
		colorEnabled: colorEnabled,
	}
}

// SetBellEnabled enables or disables the terminal bell.
func (tc *TerminalChannel) SetBellEnabled(enabled bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.bellEnabled = enabled
}

// Name returns the name of the channel.
func (tc *TerminalChannel) Name() string {
	return "terminal"
}

// IsEnabled returns whether the channel is enabled.
func (tc *TerminalChannel) IsEnabled() bool {
	return tc.out != nil
}

// Send prints the notification.
func (tc *TerminalChannel) Send(ctx context.Context, n Notification) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.bellEnabled && n.Type == NotificationPriceAlert {
		fmt.Fprint(tc.out, "\a")
	}
	_, err := fmt.Fprintln(tc.out, FormatNotification(n, tc.colorEnabled))
	return err
}

// FormatNotification formats a notification for terminal display.
func FormatNotification(n Notification, colorEnabled bool) string {
	var sb strings.Builder

	indicator := "INFO"
	c := color.New(color.FgWhite)
	if n.Type == NotificationPriceAlert {
		indicator = "ALERT"
		c = color.New(color.FgGreen, color.Bold)
	}
	if colorEnabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}

	header := fmt.Sprintf("[%s] %s", n.Timestamp.Format("15:04:05"), indicator)
	sb.WriteString(c.Sprint(header))
	sb.WriteString(" | ")
	sb.WriteString(n.Title)

	for _, line := range strings.Split(n.Message, "\n") {
		if line == "" {
			continue
		}
		sb.WriteString("\n    ")
		sb.WriteString(line)
	}
	return sb.String()
}
