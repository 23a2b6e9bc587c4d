package models

// Recipient 注册在设备上的通知接收人（对应 recipients 表）
type Recipient struct {
	UserID          string  `json:"user_id" db:"user_id"`
	Name            string  `json:"name" db:"name"`
	FCMToken        *string `json:"fcm_token,omitempty" db:"fcm_token"`
	GuardianNumber1 *string `json:"guardian_number1,omitempty" db:"guardian_number1"`
	GuardianNumber2 *string `json:"guardian_number2,omitempty" db:"guardian_number2"`
	DeviceID        string  `json:"device_id" db:"device_id"`
	LowerBoundLine1 int     `json:"lower_bound_line1" db:"lower_bound_line1"`
	LowerBoundLine2 int     `json:"lower_bound_line2" db:"lower_bound_line2"`
	UnitsPerLine1   float64 `json:"units_per_line1" db:"units_per_line1"`
	UnitsPerLine2   float64 `json:"units_per_line2" db:"units_per_line2"`
}

// Settings 从接收人记录派生设备阈值配置
func (r *Recipient) Settings() DeviceSettings {
	s := DeviceSettings{
		LowerBoundLine1: r.LowerBoundLine1,
		LowerBoundLine2: r.LowerBoundLine2,
		UnitsPerLine1:   r.UnitsPerLine1,
		UnitsPerLine2:   r.UnitsPerLine2,
	}
	s.Normalize()
	return s
}

// GuardianNumbers 收集非空的监护人电话（用于语音升级）
func (r *Recipient) GuardianNumbers() []string {
	var numbers []string
	if r.GuardianNumber1 != nil && *r.GuardianNumber1 != "" {
		numbers = append(numbers, *r.GuardianNumber1)
	}
	if r.GuardianNumber2 != nil && *r.GuardianNumber2 != "" {
		numbers = append(numbers, *r.GuardianNumber2)
	}
	return numbers
}
