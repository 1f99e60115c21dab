package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"docharvest/pkg/config"
	"docharvest/pkg/traversal"
)

// NotificationSender interface for platform-specific notification implementations
type NotificationSender interface {
	Send(title, message string) error
}

// LinuxNotificationSender sends notifications on Linux using notify-send
type LinuxNotificationSender struct{}

func (l *LinuxNotificationSender) Send(title, message string) error {
	cmd := exec.Command("notify-send", title, message)
	return cmd.Run()
}

// MacOSNotificationSender sends notifications on macOS using osascript
type MacOSNotificationSender struct{}

func (m *MacOSNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)
	return cmd.Run()
}

// WindowsNotificationSender sends notifications on Windows using PowerShell
type WindowsNotificationSender struct{}

func (w *WindowsNotificationSender) Send(title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("docharvest").Show($toast)
	`, title, message)
	
	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	return cmd.Run()
}

// Notifier handles cross-platform notifications
type Notifier struct {
	sender NotificationSender
	out    io.Writer
}

// NewNotifier creates a new Notifier based on the current platform
func NewNotifier() *Notifier {
	var sender NotificationSender

	switch runtime.GOOS {
	case "linux":
		sender = &LinuxNotificationSender{}
	case "darwin":
		sender = &MacOSNotificationSender{}
	case "windows":
		sender = &WindowsNotificationSender{}
	}

	return NewNotifierWith(sender, os.Stdout)
}

// NewNotifierWith creates a Notifier with an explicit sender and console
func NewNotifierWith(sender NotificationSender, out io.Writer) *Notifier {
	return &Notifier{sender: sender, out: out}
}

// SendNotification sends a desktop notification and prints to console
func (n *Notifier) SendNotification(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Cyan(title), Yellow(message))
	n.send(title, message)
}

// SendError sends an error notification
func (n *Notifier) SendError(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

// SendSuccess sends a success notification
func (n *Notifier) SendSuccess(title, message string) {
	fmt.Fprintf(n.out, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender != nil {
		// Desktop notifications are best effort
		_ = n.sender.Send(title, message)
	}
}

// RunNotifier notifies when a run finishes or aborts. It is a
// traversal.Observer that ignores per-entry events.
type RunNotifier struct {
	traversal.NopObserver
	notifier *Notifier
	cfg      config.NotificationConfig
}

// NewRunNotifier wraps notifier with the configured preferences
func NewRunNotifier(notifier *Notifier, cfg config.NotificationConfig) *RunNotifier {
	return &RunNotifier{notifier: notifier, cfg: cfg}
}

// Finished sends the end of run notification
func (r *RunNotifier) Finished(state *traversal.RunState, err error) {
	if !r.cfg.Enabled {
		return
	}

	switch {
	case err != nil && state.DoneReason != traversal.DoneCancelled:
		if r.cfg.OnError {
			r.notifier.SendError("Harvest aborted", err.Error())
		}
	case err == nil:
		if r.cfg.OnComplete {
			r.notifier.SendSuccess("Harvest complete",
				fmt.Sprintf("%d documents downloaded, %d skipped", len(state.Completed), len(state.Skipped)))
		}
	}
}
