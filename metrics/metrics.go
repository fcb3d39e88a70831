// Package metrics counts checkout outcomes and times wallet-facing
// operations. The Prometheus recorder is opt-in; the noop is the
// default.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
