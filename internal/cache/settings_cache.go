package cache

import (
	"context"
	"fmt"
	"sync"

	"aquasense-alert/internal/models"

	"go.uber.org/zap"
)

// RecipientSource 接收人目录（由 repository 层实现）
type RecipientSource interface {
	QueryRecipients(ctx context.Context, deviceID string) ([]models.Recipient, error)
}

// SettingsCache 设备阈值配置缓存
// 首次访问时从接收人目录懒加载，更新命令显式合并
type SettingsCache struct {
	mu        sync.RWMutex
	entries   map[string]*models.DeviceSettings
	directory RecipientSource
	logger    *zap.Logger
}

// NewSettingsCache 创建配置缓存
func NewSettingsCache(directory RecipientSource, logger *zap.Logger) *SettingsCache {
	return &SettingsCache{
		entries:   make(map[string]*models.DeviceSettings),
		directory: directory,
		logger:    logger,
	}
}

// Get 获取设备配置
// 缓存未命中时查询目录，取首条匹配记录派生配置
// 目录中无记录时返回 (nil, nil)，不缓存，下次调用重试
func (c *SettingsCache) Get(ctx context.Context, deviceID string) (*models.DeviceSettings, error) {
	c.mu.RLock()
	cached, ok := c.entries[deviceID]
	c.mu.RUnlock()
	if ok {
		copied := *cached
		return &copied, nil
	}

	recipients, err := c.directory.QueryRecipients(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve settings for device %s: %w", deviceID, err)
	}
	if len(recipients) == 0 {
		// 未解析：允许下次重试
		return nil, nil
	}

	// 首条匹配记录定义设备配置
	settings := recipients[0].Settings()

	// 多个接收人阈值不一致时只记录，不改变取值
	for _, r := range recipients[1:] {
		if r.Settings() != settings {
			c.logger.Debug("Recipient settings diverge for device",
				zap.String("device_id", deviceID),
				zap.String("user_id", r.UserID),
			)
		}
	}

	c.mu.Lock()
	c.entries[deviceID] = &settings
	c.mu.Unlock()

	copied := settings
	return &copied, nil
}

// Update 将部分字段合并到缓存条目（不存在则创建）
// 调用方负责先将同样的字段持久化到目录
func (c *SettingsCache) Update(deviceID string, patch *models.SettingsPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[deviceID]
	if !ok {
		entry = &models.DeviceSettings{}
		entry.Normalize()
		c.entries[deviceID] = entry
	}
	patch.Apply(entry)
}

// Invalidate 移除缓存条目，下次访问重新加载
func (c *SettingsCache) Invalidate(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, deviceID)
}
