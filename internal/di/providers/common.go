// Package providers contains dependency injection providers for the YomiHub server.
package providers

import "time"

const shutdownTimeout = 10 * time.Second
