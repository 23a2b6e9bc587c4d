package cache

import (
	"sync"
	"time"

	"aquasense-alert/internal/models"
)

// RollingStore 滚动缓存（每设备：最新读数 + 时间窗口内的历史序列）
// 同一设备的写入由设备级互斥锁串行化，不同设备互不阻塞
type RollingStore struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry

	retention time.Duration // 历史保留窗口，默认 48h
	liveness  time.Duration // 实时数据有效时长，默认 30s
	now       func() time.Time
}

// deviceEntry 单设备缓存条目
type deviceEntry struct {
	mu          sync.Mutex
	live        models.Reading
	lastUpdated time.Time
	history     []models.Reading
}

// NewRollingStore 创建滚动缓存
func NewRollingStore(retention, liveness time.Duration, now func() time.Time) *RollingStore {
	if now == nil {
		now = time.Now
	}
	return &RollingStore{
		devices:   make(map[string]*deviceEntry),
		retention: retention,
		liveness:  liveness,
		now:       now,
	}
}

// Put 写入一条读数：整体替换实时条目，追加历史，并立即淘汰窗口外的旧数据
func (s *RollingStore) Put(reading *models.Reading) {
	entry := s.entry(reading.DeviceID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := s.now()
	entry.live = *reading
	entry.lastUpdated = now
	entry.history = append(entry.history, *reading)

	// 淘汰在每次写入时进行，而不是读取时
	// 调用方时间戳可信但不保证单调，迟到的旧读数可能落在新元素之后，
	// 所以必须整段过滤而不是只剥前缀
	cutoff := now.Add(-s.retention)
	kept := entry.history[:0]
	for _, r := range entry.history {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	entry.history = kept
}

// GetLive 获取设备的实时读数
// 超过有效时长的缓存视为传感器失联，返回 "无数据" 而不是旧值
func (s *RollingStore) GetLive(deviceID string) (*models.Reading, bool) {
	entry, ok := s.lookup(deviceID)
	if !ok {
		return nil, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.lastUpdated.IsZero() {
		return nil, false
	}
	if s.now().Sub(entry.lastUpdated) > s.liveness {
		return nil, false
	}

	reading := entry.live
	return &reading, true
}

// GetHistory 获取设备当前窗口内的历史读数（拷贝，时间升序）
// 历史数据不做失联过滤
func (s *RollingStore) GetHistory(deviceID string) []models.Reading {
	entry, ok := s.lookup(deviceID)
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	result := make([]models.Reading, len(entry.history))
	copy(result, entry.history)
	return result
}

// entry 获取或创建设备条目
func (s *RollingStore) entry(deviceID string) *deviceEntry {
	s.mu.RLock()
	entry, ok := s.devices[deviceID]
	s.mu.RUnlock()
	if ok {
		return entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok = s.devices[deviceID]; ok {
		return entry
	}
	entry = &deviceEntry{}
	s.devices[deviceID] = entry
	return entry
}

func (s *RollingStore) lookup(deviceID string) (*deviceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.devices[deviceID]
	return entry, ok
}
