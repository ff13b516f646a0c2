package scale

import "context"

// sartoriusDriver implements the Sartorius printer output format.
// Lines such as "+   27.350" or "     0.000 GN" terminate with CR or
// LF; the sign arrives separated from the digits by spaces. Overflowed
// lines are discarded.
type sartoriusDriver struct{}

var sartorius = sartoriusDriver{}

func (sartoriusDriver) Name() string { return "Sartorius" }

func (sartoriusDriver) Listen(ctx context.Context, sess *Session) error {
	return listenLines(ctx, sess, listenOptions{
		terminators: []byte{'\r', '\n'},
		decode:      DecodeWeight,
	})
}
