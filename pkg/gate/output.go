package gate

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
)

// FullScale is the integer range of one shutter output level.
const FullScale = 65535

// Output drives the two shutter actuators. Both levels arrive in a
// single call so the shutters never observably desynchronize mid-update.
type Output interface {
	SetLevels(shutter0, shutter1 uint16)
}

// Levels interpolates each shutter's duty cycle between its open and
// close endpoints and scales to the full integer output range.
func Levels(cfg Config, ratio float64) (shutter0, shutter1 uint16) {
	d0 := cfg.Shutter0OpenDuty + (cfg.Shutter0CloseDuty-cfg.Shutter0OpenDuty)*ratio
	d1 := cfg.Shutter1OpenDuty + (cfg.Shutter1CloseDuty-cfg.Shutter1OpenDuty)*ratio
	return uint16(FullScale * d0), uint16(FullScale * d1)
}

// LogOutput discards levels after logging them. It stands in for the
// PWM hardware when the daemon runs without a pwmchip.
type LogOutput struct{}

// SetLevels implements Output.
func (LogOutput) SetLevels(shutter0, shutter1 uint16) {
	glog.V(3).Infof("gate levels %d %d", shutter0, shutter1)
}

// servoPeriodNs is the 50 Hz servo PWM period.
const servoPeriodNs = 20000000

// SysfsOutput drives two channels of a Linux PWM chip. The kernel
// applies each duty_cycle write on the next period boundary, which is
// the closest a sysfs backend gets to the combined register write of
// the original hardware; the two writes land within the same period.
type SysfsOutput struct {
	ch0, ch1 string
}

// NewSysfsOutput binds two exported channels of chipDir (e.g.
// /sys/class/pwm/pwmchip0) and programs the servo period.
func NewSysfsOutput(chipDir string, ch0, ch1 int) (*SysfsOutput, error) {
	o := &SysfsOutput{
		ch0: filepath.Join(chipDir, fmt.Sprintf("pwm%d", ch0)),
		ch1: filepath.Join(chipDir, fmt.Sprintf("pwm%d", ch1)),
	}
	for _, ch := range []string{o.ch0, o.ch1} {
		if err := writeAttr(ch, "period", servoPeriodNs); err != nil {
			return nil, err
		}
		if err := writeAttr(ch, "enable", 1); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// SetLevels implements Output.
func (o *SysfsOutput) SetLevels(shutter0, shutter1 uint16) {
	if err := o.setLevel(o.ch0, shutter0); err != nil {
		glog.Errorf("shutter0: %v", err)
	}
	if err := o.setLevel(o.ch1, shutter1); err != nil {
		glog.Errorf("shutter1: %v", err)
	}
}

func (o *SysfsOutput) setLevel(ch string, level uint16) error {
	duty := int64(servoPeriodNs) * int64(level) / FullScale
	return writeAttr(ch, "duty_cycle", duty)
}

func writeAttr(dir, name string, v int64) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(strconv.FormatInt(v, 10)), 0644)
}
