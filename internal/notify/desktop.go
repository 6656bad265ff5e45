// Package notify shows reactions to the user as desktop notifications.
package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Urgency levels for desktop notifications.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Desktop sends notifications via notify-send.
type Desktop struct {
	appName string
	expire  time.Duration
	run     func(ctx context.Context, name string, args ...string) error
}

// NewDesktop creates a Desktop notifier whose notifications expire after
// expire (0 leaves it to the notification daemon).
func NewDesktop(expire time.Duration) *Desktop {
	return &Desktop{
		appName: "rin",
		expire:  expire,
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Available checks if notify-send is installed.
func (d *Desktop) Available() bool {
	_, err := exec.LookPath("notify-send")
	return err == nil
}

// Notify shows one notification. Interrupting notifications use normal
// urgency, the rest low, so a notification daemon in do-not-disturb mode
// can hold them back.
func (d *Desktop) Notify(ctx context.Context, title, body string, interrupt bool) error {
	urgency := UrgencyLow
	if interrupt {
		urgency = UrgencyNormal
	}
	if err := d.run(ctx, "notify-send", d.args(title, body, urgency)...); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}

func (d *Desktop) args(title, body string, urgency Urgency) []string {
	args := []string{
		"--app-name=" + d.appName,
		"--urgency=" + string(urgency),
	}
	switch urgency {
	case UrgencyCritical:
		args = append(args, "--icon=dialog-warning")
	default:
		args = append(args, "--icon=dialog-information")
	}
	if d.expire > 0 {
		args = append(args, fmt.Sprintf("--expire-time=%d", d.expire.Milliseconds()))
	}
	return append(args, title, body)
}
