package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

func TestAvailable(t *testing.T) {
	c := New(&platform.Platform{HasParecord: true})
	assert.False(t, c.Available(), "opt-in")

	c.Enable()
	assert.True(t, c.Available())

	none := New(&platform.Platform{})
	none.Enable()
	assert.False(t, none.Available())
	_, err := none.Capture(context.Background())
	assert.ErrorContains(t, err, "no audio capture tool")
}

func TestCapture_Disabled(t *testing.T) {
	_, err := New(&platform.Platform{HasPWRecord: true}).Capture(context.Background())
	assert.ErrorContains(t, err, "disabled")
}

func TestCommand(t *testing.T) {
	c := New(&platform.Platform{HasPWRecord: true, HasParecord: true})
	assert.Equal(t, []string{"pw-record", "--rate", "44100", "--channels", "1", "--format", "s16", "-"}, c.command())

	c.platform = &platform.Platform{HasParecord: true}
	assert.Equal(t, "parecord", c.command()[0])
	assert.Contains(t, c.command(), "--raw")
}

func TestSetDuration(t *testing.T) {
	c := New(&platform.Platform{})
	c.SetDuration(time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, c.Duration)
	c.SetDuration(time.Minute)
	assert.Equal(t, 10*time.Second, c.Duration)
	c.SetDuration(2 * time.Second)
	assert.Equal(t, 2*time.Second, c.Duration)
}
