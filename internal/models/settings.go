package models

// DeviceSettings 设备的报警阈值配置（来源于 recipients 目录的首条匹配记录）
type DeviceSettings struct {
	LowerBoundLine1 int     `json:"lower_bound_line1"`
	LowerBoundLine2 int     `json:"lower_bound_line2"`
	UnitsPerLine1   float64 `json:"units_per_line1"`
	UnitsPerLine2   float64 `json:"units_per_line2"`
}

// Normalize 应用默认值
// UnitsPerLineN 为 0 时按 1 处理，避免评估时除零
func (s *DeviceSettings) Normalize() {
	if s.UnitsPerLine1 == 0 {
		s.UnitsPerLine1 = 1
	}
	if s.UnitsPerLine2 == 0 {
		s.UnitsPerLine2 = 1
	}
}

// SettingsPatch 设备阈值配置的部分更新
// nil 字段表示不修改
type SettingsPatch struct {
	LowerBoundLine1 *int     `json:"lower_bound_line1,omitempty"`
	LowerBoundLine2 *int     `json:"lower_bound_line2,omitempty"`
	UnitsPerLine1   *float64 `json:"units_per_line1,omitempty"`
	UnitsPerLine2   *float64 `json:"units_per_line2,omitempty"`
}

// Apply 将补丁合并到配置上
func (p *SettingsPatch) Apply(s *DeviceSettings) {
	if p.LowerBoundLine1 != nil {
		s.LowerBoundLine1 = *p.LowerBoundLine1
	}
	if p.LowerBoundLine2 != nil {
		s.LowerBoundLine2 = *p.LowerBoundLine2
	}
	if p.UnitsPerLine1 != nil {
		s.UnitsPerLine1 = *p.UnitsPerLine1
	}
	if p.UnitsPerLine2 != nil {
		s.UnitsPerLine2 = *p.UnitsPerLine2
	}
	s.Normalize()
}

// Empty 判断补丁是否没有任何字段
func (p *SettingsPatch) Empty() bool {
	return p.LowerBoundLine1 == nil && p.LowerBoundLine2 == nil &&
		p.UnitsPerLine1 == nil && p.UnitsPerLine2 == nil
}
