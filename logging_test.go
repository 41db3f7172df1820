package sysviz

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultLogger_Levels(t *testing.T) {
	var out, errOut bytes.Buffer
	l := newLogger("viz", false, &out, &errOut)

	l.Debugf("hidden %d", 1)
	assert.Empty(t, out.String())

	l.Infof("hello %s", "world")
	assert.Contains(t, out.String(), "[viz] INFO: hello world")

	l.Warnf("careful")
	l.Errorf("broken: %v", "shader")
	assert.Contains(t, errOut.String(), "[viz] WARN: careful")
	assert.Contains(t, errOut.String(), "[viz] ERROR: broken: shader")
	assert.NotContains(t, out.String(), "WARN")
}

func TestDefaultLogger_SetDebug(t *testing.T) {
	var out bytes.Buffer
	l := newLogger("", false, &out, &out)
	assert.False(t, l.DebugEnabled())

	l.SetDebug(true)
	l.Debugf("now visible")
	assert.Contains(t, out.String(), "DEBUG: now visible")
	assert.NotContains(t, out.String(), "[")
}

func TestBufferLogger_Level(t *testing.T) {
	b := NewBufferLogger()
	b.Infof("a")
	b.Warnf("b %d", 2)
	b.Debugf("c")
	b.SetDebug(false)
	b.Debugf("d")

	assert.Equal(t, []string{"b 2"}, b.Level("WARN"))
	assert.Equal(t, []string{"c"}, b.Level("DEBUG"))
	assert.Len(t, b.Messages, 3)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotNil(t, l)
	assert.False(t, l.DebugEnabled())
	assert.NotPanics(t, func() {
		l.SetDebug(true)
		l.Errorf("ignored %v", nil)
	})
}

func TestSessionID_Stable(t *testing.T) {
	id := SessionID()
	assert.Len(t, id, 8)
	assert.Equal(t, id, SessionID())
}
