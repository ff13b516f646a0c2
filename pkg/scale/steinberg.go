package scale

import "context"

// steinbergDriver implements the Steinberg SBS continuous output:
// newline-terminated lines such as "    12.35 g".
type steinbergDriver struct{}

var steinbergSBS = steinbergDriver{}

func (steinbergDriver) Name() string { return "Steinberg SBS" }

func (steinbergDriver) Listen(ctx context.Context, sess *Session) error {
	return listenLines(ctx, sess, listenOptions{
		terminators: []byte{'\n'},
		decode:      DecodeWeight,
	})
}

// ZeroCommand implements Zeroer.
func (steinbergDriver) ZeroCommand() []byte { return []byte("T\r\n") }
