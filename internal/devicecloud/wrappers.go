package devicecloud

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// Well-known writable property names.
const (
	PropDeviceMode       = "set_device_mode"
	PropTempSetpoint     = "set_temp_setpoint"
	PropStatus           = "set_status"
	PropDeviceStatus     = "set_device_status"
	PropSilentMode       = "set_silent_function"
	PropHumiditySetpoint = "humidity_setpoint"
	PropFanSpeed         = "set_int_fan_speed"
)

// Mode selects the device's operating mode.
type Mode int

const (
	ModeCooling    Mode = 1
	ModeDehumidify Mode = 2
	ModeFan        Mode = 3
)

// Status is the two-state on/off value several properties share.
type Status int

const (
	StatusOn  Status = 1
	StatusOff Status = 2
)

// FanSpeed selects the fan level.
type FanSpeed int

const (
	FanSpeedLow  FanSpeed = 1
	FanSpeedMid  FanSpeed = 2
	FanSpeedHigh FanSpeed = 3
	FanSpeedAuto FanSpeed = 4
)

// Temperature setpoint range accepted by the cloud, in degrees Celsius.
const (
	MinTempSetpoint = 16.0
	MaxTempSetpoint = 32.0
)

// The wrappers below are thin adapters over SetProperty: they pin the
// property name and value type and reject out-of-range input without issuing
// a request. They never clamp; a caller wanting clamping does it itself.

// SetMode sets the operating mode.
func (c *Client) SetMode(ctx context.Context, dsn string, mode Mode) bool {
	if mode < ModeCooling || mode > ModeFan {
		c.rejectValue(dsn, PropDeviceMode, int(mode))
		return false
	}
	return c.SetProperty(ctx, dsn, PropDeviceMode, int(mode))
}

// SetTemperatureSetpoint sets the target temperature. Accepted range is
// 16-32 inclusive.
func (c *Client) SetTemperatureSetpoint(ctx context.Context, dsn string, temperature float64) bool {
	if temperature < MinTempSetpoint || temperature > MaxTempSetpoint {
		c.rejectValue(dsn, PropTempSetpoint, temperature)
		return false
	}
	return c.SetProperty(ctx, dsn, PropTempSetpoint, temperature)
}

// SetStatus turns the device on or off.
func (c *Client) SetStatus(ctx context.Context, dsn string, status Status) bool {
	if status != StatusOn && status != StatusOff {
		c.rejectValue(dsn, PropStatus, int(status))
		return false
	}
	return c.SetProperty(ctx, dsn, PropStatus, int(status))
}

// SetDeviceStatus turns the device on or off via the string-typed status
// property some models use instead of set_status.
func (c *Client) SetDeviceStatus(ctx context.Context, dsn string, status Status) bool {
	if status != StatusOn && status != StatusOff {
		c.rejectValue(dsn, PropDeviceStatus, int(status))
		return false
	}
	return c.SetProperty(ctx, dsn, PropDeviceStatus, strconv.Itoa(int(status)))
}

// SetSilentMode enables or disables silent operation.
func (c *Client) SetSilentMode(ctx context.Context, dsn string, status Status) bool {
	if status != StatusOn && status != StatusOff {
		c.rejectValue(dsn, PropSilentMode, int(status))
		return false
	}
	return c.SetProperty(ctx, dsn, PropSilentMode, int(status))
}

// SetHumiditySetpoint sets the target humidity percentage, 0-100.
func (c *Client) SetHumiditySetpoint(ctx context.Context, dsn string, humidity int) bool {
	if humidity < 0 || humidity > 100 {
		c.rejectValue(dsn, PropHumiditySetpoint, humidity)
		return false
	}
	return c.SetProperty(ctx, dsn, PropHumiditySetpoint, humidity)
}

// SetFanSpeed sets the fan level. The cloud expects this property's value as
// a string.
func (c *Client) SetFanSpeed(ctx context.Context, dsn string, speed FanSpeed) bool {
	if speed < FanSpeedLow || speed > FanSpeedAuto {
		c.rejectValue(dsn, PropFanSpeed, int(speed))
		return false
	}
	return c.SetProperty(ctx, dsn, PropFanSpeed, strconv.Itoa(int(speed)))
}

func (c *Client) rejectValue(dsn, name string, value any) {
	c.logger.Warn("rejecting out-of-range property value",
		zap.String("dsn", dsn),
		zap.String("property", name),
		zap.Any("value", value))
}
