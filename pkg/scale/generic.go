package scale

import "context"

// genericDriver handles any scale that streams one ASCII weight per
// newline-terminated line, with or without a status prefix. Overflowed
// lines are still handed to the decoder (lenient framing).
type genericDriver struct{}

var generic = genericDriver{}

func (genericDriver) Name() string { return "Generic" }

func (genericDriver) Listen(ctx context.Context, sess *Session) error {
	return listenLines(ctx, sess, listenOptions{
		terminators:    []byte{'\n'},
		deliverPartial: true,
		decode:         DecodeWeight,
	})
}
