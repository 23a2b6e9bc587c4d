package evaluator

import (
	"fmt"
	"math"
	"strings"

	"aquasense-alert/internal/models"
)

// ViolationReport 阈值评估结果
type ViolationReport struct {
	Line1Violated bool   `json:"line1_violated"`
	Line2Violated bool   `json:"line2_violated"`
	Message       string `json:"message"`
}

// Violated 是否存在任一线路违规
func (r ViolationReport) Violated() bool {
	return r.Line1Violated || r.Line2Violated
}

// Evaluate 根据读数和设备配置计算违规状态
// activeUnits = round(lineN / unitsPerLineN)，四舍五入远离零
// activeUnits 低于下限即违规；纯函数，无副作用
func Evaluate(reading *models.Reading, settings *models.DeviceSettings) ViolationReport {
	units1 := settings.UnitsPerLine1
	if units1 == 0 {
		units1 = 1
	}
	units2 := settings.UnitsPerLine2
	if units2 == 0 {
		units2 = 1
	}

	active1 := int(math.Round(reading.Line1 / units1))
	active2 := int(math.Round(reading.Line2 / units2))

	report := ViolationReport{
		Line1Violated: active1 < settings.LowerBoundLine1,
		Line2Violated: active2 < settings.LowerBoundLine2,
	}

	var parts []string
	if report.Line1Violated {
		parts = append(parts, fmt.Sprintf("Line1 active units %d below lower bound %d", active1, settings.LowerBoundLine1))
	}
	if report.Line2Violated {
		parts = append(parts, fmt.Sprintf("Line2 active units %d below lower bound %d", active2, settings.LowerBoundLine2))
	}
	report.Message = strings.Join(parts, "; ")

	return report
}
