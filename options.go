package rendertask

// Option configures a Runner during creation.
//
// Example:
//
//	r, err := rendertask.NewRunner(dev,
//	    rendertask.WithLabel("main-renderer"),
//	    rendertask.WithDebugChecks(true),
//	)
type Option func(*options)

// options holds optional configuration for Runner creation.
type options struct {
	label             string
	debugChecks       bool
	streamBufferCount int
}

// defaultStreamBufferCount is the size of the stream buffer ring.
const defaultStreamBufferCount = 3

// defaultOptions returns the default runner options.
func defaultOptions() options {
	return options{
		label:             "rendertask",
		debugChecks:       debugBuild,
		streamBufferCount: defaultStreamBufferCount,
	}
}

// WithLabel sets the label used in log lines and diagnostics.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithDebugChecks turns fence misuse (double delete, wait after delete)
// into a fatal precondition violation instead of a logged warning.
// It defaults to true when built with the rtdebug tag.
func WithDebugChecks(enabled bool) Option {
	return func(o *options) {
		o.debugChecks = enabled
	}
}

// WithStreamBufferCount sets how many stream buffers are cycled through by
// Commands.StreamBuffer on devices that support stream buffers.
// Values below 1 are ignored.
func WithStreamBufferCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.streamBufferCount = n
		}
	}
}
