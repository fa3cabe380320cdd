package tokenchannel

import "github.com/btcsuite/btclog"

var tcLog = btclog.Disabled

// UseLogger sets the package-wide logger used by this package.
func UseLogger(logger btclog.Logger) {
	tcLog = logger
}
