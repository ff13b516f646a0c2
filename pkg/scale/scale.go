package scale

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
)

// SettingsRev is the layout revision of the persisted scale settings.
const SettingsRev = 0

// Settings are the persisted scale settings.
type Settings struct {
	Revision int        `toml:"revision"`
	Driver   DriverID   `toml:"driver"`
	Baudrate Baudrate   `toml:"baudrate"`
	Format   UARTFormat `toml:"uart_format"`
}

// ConfigRev reports the layout revision for the config store.
func (s *Settings) ConfigRev() int { return s.Revision }

// DefaultSettings are applied when the persisted settings are missing
// or carry an unexpected revision.
var DefaultSettings = Settings{
	Revision: SettingsRev,
	Driver:   DriverAndFXi,
	Baudrate: Baud19200,
	Format:   Format8N1,
}

// ErrNoZero is returned when the active driver has no zero command.
var ErrNoZero = errors.New("scale: driver does not support zero")

// ModeSetter is implemented by ports whose line parameters can be
// changed at runtime.
type ModeSetter interface {
	SetMode(*serial.Mode) error
}

// Controller owns the scale subsystem: the active driver, the serial
// port, the current measurement cell and the guarded outbound command
// path.
//
// Reselecting the driver while running updates the persisted settings
// and the handle used for the zero command, but the listening task
// started by Run keeps running the driver that was active at startup.
type Controller struct {
	mu       sync.Mutex // guards settings and the active driver handle
	settings Settings
	drv      Driver

	port io.ReadWriter
	cell *Cell
	wmu  sync.Mutex // serializes outbound writes to the scale
}

// New creates a Controller for the given persisted settings and port.
func New(settings Settings, port io.ReadWriter) *Controller {
	c := &Controller{
		settings: settings,
		port:     port,
		cell:     NewCell(),
	}
	c.drv = SelectDriver(settings.Driver)
	return c
}

// Name implements framework.Named.
func (c *Controller) Name() string { return "scale" }

// Run starts the listening task of the driver active at startup and
// blocks until the context is canceled or the port fails.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	drv := c.drv
	c.mu.Unlock()
	glog.Infof("scale driver: %s", drv.Name())
	return drv.Listen(ctx, &Session{port: c.port, cell: c.cell})
}

// Settings returns a copy of the current persisted settings.
func (c *Controller) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// DriverName returns the display name of the active driver.
func (c *Controller) DriverName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drv.Name()
}

// SelectDriver activates the driver for id, falling back to the default
// vendor for unrecognized ids. Idempotent; takes effect for the zero
// command immediately and for listening on the next startup.
func (c *Controller) SelectDriver(id DriverID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Driver = id
	c.drv = SelectDriver(id)
}

// SetBaudrate updates the persisted baud selector and reprograms the
// port when it supports live mode changes.
func (c *Controller) SetBaudrate(b Baudrate) error {
	c.mu.Lock()
	c.settings.Baudrate = b
	mode := Mode(c.settings.Baudrate, c.settings.Format)
	c.mu.Unlock()
	return c.applyMode(mode)
}

// SetFormat updates the persisted frame format selector and reprograms
// the port when it supports live mode changes.
func (c *Controller) SetFormat(f UARTFormat) error {
	c.mu.Lock()
	c.settings.Format = f
	mode := Mode(c.settings.Baudrate, c.settings.Format)
	c.mu.Unlock()
	return c.applyMode(mode)
}

func (c *Controller) applyMode(mode *serial.Mode) error {
	if ms, ok := c.port.(ModeSetter); ok {
		return ms.SetMode(mode)
	}
	return nil
}

// Current returns the latest measurement, NaN before the first one.
func (c *Controller) Current() float64 {
	return c.cell.Load()
}

// WaitNext blocks until the next measurement is published, up to
// timeout. timeout 0 waits until the context is done.
func (c *Controller) WaitNext(ctx context.Context, timeout time.Duration) (float64, bool) {
	return c.cell.Wait(ctx, timeout)
}

// WriteRaw writes a raw command to the scale. Writes from concurrent
// contexts are serialized.
func (c *Controller) WriteRaw(cmd []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.port.Write(cmd)
	return err
}

// ForceZero sends the active driver's zero command, or ErrNoZero when
// the vendor protocol has none.
func (c *Controller) ForceZero() error {
	c.mu.Lock()
	drv := c.drv
	c.mu.Unlock()
	z, ok := drv.(Zeroer)
	if !ok {
		return ErrNoZero
	}
	return c.WriteRaw(z.ZeroCommand())
}
