package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDesktop_Notify(t *testing.T) {
	var got []string
	d := NewDesktop(8 * time.Second)
	d.run = func(_ context.Context, name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}

	require.NoError(t, d.Notify(context.Background(), "rin", "Enjoy the video.", false))
	assert.Equal(t, []string{
		"notify-send",
		"--app-name=rin",
		"--urgency=low",
		"--icon=dialog-information",
		"--expire-time=8000",
		"rin",
		"Enjoy the video.",
	}, got)

	require.NoError(t, d.Notify(context.Background(), "rin", "Heads up", true))
	assert.Contains(t, got, "--urgency=normal")
}

func TestDesktop_NotifyError(t *testing.T) {
	d := NewDesktop(0)
	d.run = func(context.Context, string, ...string) error { return errors.New("no bus") }
	err := d.Notify(context.Background(), "rin", "x", false)
	assert.ErrorContains(t, err, "notify-send")
	assert.NotContains(t, d.args("a", "b", UrgencyCritical), "--expire-time=0")
	assert.Contains(t, d.args("a", "b", UrgencyCritical), "--icon=dialog-warning")
}
