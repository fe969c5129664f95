package smc

// SMC keys read on Apple Silicon.
const (
	ACPowerKey            = "AC-W"
	BatteryChargeKey      = "BUIC"
	BatteryTemperatureKey = "TB0T"
	DCInCurrentKey        = "ID0R"
	DCInVoltageKey        = "VD0R"
	BatteryCurrentKey     = "B0AC"
	BatteryVoltageKey     = "B0AV"
)

var allKeys = []string{
	ACPowerKey,
	BatteryChargeKey,
	BatteryTemperatureKey,
	DCInCurrentKey,
	DCInVoltageKey,
	BatteryCurrentKey,
	BatteryVoltageKey,
}

// Battery temperatures, in °C, at which the thermal state escalates.
const (
	SuboptimalTemperature = 35.0
	CriticalTemperature   = 45.0
)
