package msproject

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// WorkdayHours 一个工作日的小时数
const WorkdayHours = 8

// LagUnitsPerDay LinkLag 以十分之一分钟计，8 小时工作日 = 4800
const LagUnitsPerDay = WorkdayHours * 60 * 10

var (
	hoursRe   = regexp.MustCompile(`(\d+(?:\.\d+)?)H`)
	minutesRe = regexp.MustCompile(`(\d+(?:\.\d+)?)M`)
	secondsRe = regexp.MustCompile(`(\d+(?:\.\d+)?)S`)
)

// ParseDuration 把 "PT8H0M0S" 或纯数字小时转换为工作日，无法解析时为 0
func ParseDuration(value string) float64 {
	s := strings.TrimSpace(value)
	if strings.HasPrefix(s, "PT") {
		body := s[2:]
		hours := component(hoursRe, body) + component(minutesRe, body)/60 + component(secondsRe, body)/3600
		return hours / WorkdayHours
	}
	return ParseFloat(s, 0) / WorkdayHours
}

func component(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseFloat 解析浮点数，空值、非法值、NaN 和 Inf 返回 fallback
func ParseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// ParseUnits 分配比例：MS Project 导出 1 表示 100%，(0,1] 的值乘以 100
func ParseUnits(value string) float64 {
	v := ParseFloat(value, 100)
	if v > 0 && v <= 1 {
		return v * 100
	}
	return v
}

// ParseWork 分配工时：PT 格式按 ParseDuration，否则按数字，默认 0
func ParseWork(value string) float64 {
	if strings.HasPrefix(strings.TrimSpace(value), "PT") {
		return ParseDuration(value)
	}
	return ParseFloat(value, 0)
}

// ParseLag 把 LinkLag 转换为工作日
func ParseLag(value string) float64 {
	return ParseFloat(value, 0) / LagUnitsPerDay
}

// ClampPercent 把完成度限制在 [0,100]
func ClampPercent(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}
