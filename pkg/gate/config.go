package gate

// ConfigRev is the layout revision of the persisted gate configuration.
const ConfigRev = 1

// Config is the persisted gate configuration. Duty cycles are fractions
// of the servo PWM period; speeds are travel percent per second and are
// floor-clamped by the controller so ramp durations stay bounded.
type Config struct {
	Revision int  `toml:"revision"`
	Enable   bool `toml:"enable"`

	Shutter0OpenDuty  float64 `toml:"shutter0_open_duty_cycle"`
	Shutter0CloseDuty float64 `toml:"shutter0_close_duty_cycle"`
	Shutter1OpenDuty  float64 `toml:"shutter1_open_duty_cycle"`
	Shutter1CloseDuty float64 `toml:"shutter1_close_duty_cycle"`

	OpenSpeedPctS  float64 `toml:"shutter_open_speed_pct_s"`
	CloseSpeedPctS float64 `toml:"shutter_close_speed_pct_s"`
}

// ConfigRev reports the layout revision for the config store.
func (c *Config) ConfigRev() int { return c.Revision }

// DefaultConfig mirrors the factory shutter trim: the two shutters are
// mounted mirrored, so their endpoints swap.
var DefaultConfig = Config{
	Revision:          ConfigRev,
	Enable:            false,
	Shutter0OpenDuty:  0.05,
	Shutter0CloseDuty: 0.09,
	Shutter1OpenDuty:  0.09,
	Shutter1CloseDuty: 0.05,
	OpenSpeedPctS:     5.0,
	CloseSpeedPctS:    3.0,
}
