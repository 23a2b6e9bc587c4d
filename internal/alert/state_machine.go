package alert

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Transition 状态机迁移结果
type Transition int

const (
	TransitionNone      Transition = iota // 状态不变，无需动作
	TransitionNewAlert                    // Inactive → Active，触发一次通知
	TransitionRecovered                   // Active → Inactive，恢复（仅记录）
)

// deviceState 单设备报警状态
type deviceState struct {
	active      bool
	lastAlertAt *time.Time
}

// StateMachine 报警状态机
// 每设备维护 Inactive/Active 状态，保证同一违规事件至多触发一次通知
// 状态仅存活于进程生命周期内，不持久化
type StateMachine struct {
	mu     sync.Mutex
	states map[string]*deviceState
	now    func() time.Time
	logger *zap.Logger
}

// NewStateMachine 创建状态机
func NewStateMachine(now func() time.Time, logger *zap.Logger) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{
		states: make(map[string]*deviceState),
		now:    now,
		logger: logger,
	}
}

// Apply 用最新的违规状态驱动状态机
// 设备首次出现时隐式创建为 Inactive
func (m *StateMachine) Apply(deviceID string, violated bool) Transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[deviceID]
	if !ok {
		state = &deviceState{}
		m.states[deviceID] = state
	}

	switch {
	case violated && !state.active:
		state.active = true
		now := m.now()
		state.lastAlertAt = &now
		m.logger.Info("Alert activated",
			zap.String("device_id", deviceID),
		)
		return TransitionNewAlert

	case violated && state.active:
		// 违规持续期间抑制重复通知
		return TransitionNone

	case !violated && state.active:
		state.active = false
		m.logger.Info("Alert recovered",
			zap.String("device_id", deviceID),
		)
		return TransitionRecovered

	default:
		return TransitionNone
	}
}

// IsActive 查询设备当前是否处于报警状态
func (m *StateMachine) IsActive(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[deviceID]
	return ok && state.active
}

// LastAlertAt 最近一次报警触发时间
func (m *StateMachine) LastAlertAt(deviceID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[deviceID]
	if !ok || state.lastAlertAt == nil {
		return time.Time{}, false
	}
	return *state.lastAlertAt, true
}
