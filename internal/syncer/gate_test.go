package syncer

import (
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
)

func TestWriteGate_Cooldown(t *testing.T) {
	mock := clock.NewMock()
	g := NewWriteGate(30*time.Second, mock)

	assert.False(t, g.Blocked())
	assert.True(t, g.Block(), "first failure starts the cooldown")
	assert.True(t, g.Blocked())

	mock.Add(10 * time.Second)
	assert.False(t, g.Block(), "a running cooldown is not restarted")
	assert.Equal(t, mock.Now().Add(20*time.Second), g.Until())

	mock.Add(20 * time.Second)
	assert.False(t, g.Blocked())
	assert.True(t, g.Block())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unsubscribed", StateUnsubscribed.String())
	assert.Equal(t, "subscribed", StateSubscribed.String())
	assert.Equal(t, "remote_applying", StateRemoteApplying.String())
	assert.Equal(t, "window", ModeWindow.String())
}
