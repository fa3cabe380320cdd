package sig

import "github.com/btcsuite/btclog"

// sigLog is the default logger used by this package; callers wire in a
// real backend with UseLogger, the same pattern the teacher repo uses for
// every package-level logger (ltndLog, peerLog, htlcLog, ...).
var sigLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	sigLog = logger
}
