package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStateMachine_FirstViolationFiresOnce(t *testing.T) {
	m := NewStateMachine(nil, zap.NewNop())

	assert.Equal(t, TransitionNewAlert, m.Apply("dev1", true))
	assert.True(t, m.IsActive("dev1"))
}

func TestStateMachine_DedupeWhileActive(t *testing.T) {
	m := NewStateMachine(nil, zap.NewNop())

	// 连续三条违规读数只触发一次 new-alert
	newAlerts := 0
	for i := 0; i < 3; i++ {
		if m.Apply("dev1", true) == TransitionNewAlert {
			newAlerts++
		}
	}

	assert.Equal(t, 1, newAlerts)
	assert.True(t, m.IsActive("dev1"))
}

func TestStateMachine_RecoveryThenRealert(t *testing.T) {
	m := NewStateMachine(nil, zap.NewNop())

	require.Equal(t, TransitionNewAlert, m.Apply("dev1", true))

	// 恢复读数触发一次 recovered
	assert.Equal(t, TransitionRecovered, m.Apply("dev1", false))
	assert.False(t, m.IsActive("dev1"))

	// 恢复后的再次违规是新事件
	assert.Equal(t, TransitionNewAlert, m.Apply("dev1", true))
}

func TestStateMachine_InactiveNoViolationIsNoop(t *testing.T) {
	m := NewStateMachine(nil, zap.NewNop())

	assert.Equal(t, TransitionNone, m.Apply("dev1", false))
	assert.False(t, m.IsActive("dev1"))
}

func TestStateMachine_LastAlertAt(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m := NewStateMachine(func() time.Time { return fixed }, zap.NewNop())

	_, ok := m.LastAlertAt("dev1")
	assert.False(t, ok)

	m.Apply("dev1", true)

	at, ok := m.LastAlertAt("dev1")
	require.True(t, ok)
	assert.Equal(t, fixed, at)

	// 恢复后时间戳保留，记录上一次事件
	m.Apply("dev1", false)
	_, ok = m.LastAlertAt("dev1")
	assert.True(t, ok)
}

func TestStateMachine_DevicesAreIndependent(t *testing.T) {
	m := NewStateMachine(nil, zap.NewNop())

	assert.Equal(t, TransitionNewAlert, m.Apply("dev1", true))
	assert.Equal(t, TransitionNewAlert, m.Apply("dev2", true))
	assert.Equal(t, TransitionRecovered, m.Apply("dev1", false))
	assert.True(t, m.IsActive("dev2"))
}
