package scale

import (
	"context"
	"io"
	"time"

	"github.com/golang/glog"
)

// Driver is a vendor protocol implementation. Exactly one driver is
// active at a time; drivers are stateless singletons selected by id.
type Driver interface {
	// Name returns the vendor display name.
	Name() string
	// Listen runs the listening task: it consumes bytes from the
	// session's port and publishes decoded measurements until the
	// context is canceled.
	Listen(ctx context.Context, sess *Session) error
}

// Zeroer is implemented by drivers that support a remote zero/tare
// command. The command bytes are written to the scale by the controller
// under its outbound write lock.
type Zeroer interface {
	ZeroCommand() []byte
}

// DriverID is the persisted enumerated driver selector. The values are
// stable storage identifiers and must not be reordered.
type DriverID int

const (
	DriverAndFXi DriverID = iota
	DriverSteinbergSBS
	DriverGNGJJB
	DriverUSSolidJFDBS
	DriverJMScience
	DriverCreedmoor
	DriverRadwagPSR2
	DriverSartorius
	DriverGeneric
)

// String returns the vendor display name of the selected driver.
func (id DriverID) String() string {
	return SelectDriver(id).Name()
}

// SelectDriver maps a persisted driver id to its implementation.
// Unrecognized ids, including ids of vendors this build does not carry,
// resolve to the AND FX-i driver.
func SelectDriver(id DriverID) Driver {
	switch id {
	case DriverAndFXi:
		return andFXi
	case DriverSteinbergSBS:
		return steinbergSBS
	case DriverSartorius:
		return sartorius
	case DriverGeneric:
		return generic
	default:
		return andFXi
	}
}

// Session binds a driver's listening task to the controller's port and
// measurement cell.
type Session struct {
	port io.Reader
	cell *Cell
}

// Publish posts a decoded measurement.
func (s *Session) Publish(v float64) {
	s.cell.Publish(v)
}

// pollDelay is the inter-poll delay of a listening task when the port
// has no pending bytes.
const pollDelay = 20 * time.Millisecond

type listenOptions struct {
	terminators    []byte
	deliverPartial bool
	decode         DecodeFunc
}

// listenLines is the shared listening loop: framer plus decoder over a
// polled byte source. Decode failures suppress the publish for that
// line and are never surfaced upward.
func listenLines(ctx context.Context, sess *Session, opt listenOptions) error {
	framer := NewLineFramer(DefaultLineCapacity, opt.terminators, opt.deliverPartial)
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := sess.port.Read(buf)
		if err == io.EOF {
			glog.V(2).Info("scale port closed")
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			// Read timeout with nothing pending.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollDelay):
			}
			continue
		}
		for _, b := range buf[:n] {
			line, ok := framer.Feed(b)
			if !ok {
				continue
			}
			if v, ok := opt.decode(line); ok {
				sess.Publish(v)
				glog.V(4).Infof("measurement %v", v)
			}
		}
	}
}
