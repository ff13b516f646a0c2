package scale

import (
	"bytes"
	"context"
)

// andFXiDriver implements the A&D FX-i standard streaming format.
// Lines look like "ST,+00012.345  g" terminated by CRLF; "OL" reports
// an overloaded pan and carries no usable value.
type andFXiDriver struct{}

var andFXi = andFXiDriver{}

var andFXiOverload = []byte("OL")

func (andFXiDriver) Name() string { return "AND FX-i Std" }

func (andFXiDriver) Listen(ctx context.Context, sess *Session) error {
	return listenLines(ctx, sess, listenOptions{
		terminators: []byte{'\r', '\n'},
		decode:      decodeAndFXi,
	})
}

// ZeroCommand implements Zeroer. "Z" re-zeroes the display.
func (andFXiDriver) ZeroCommand() []byte { return []byte("Z\r\n") }

func decodeAndFXi(line []byte) (float64, bool) {
	if bytes.HasPrefix(line, andFXiOverload) {
		return 0, false
	}
	return DecodeWeight(line)
}
