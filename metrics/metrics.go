// Package metrics is a thin wrapper over rcrowley/go-metrics matching the
// teacher's metrics.NewRegisteredCounter call-site shape (work/worker.go),
// scoped down to the one counter type ledgerd's mining loop needs.
package metrics

import (
	"fmt"
	"net/http"

	gometrics "github.com/rcrowley/go-metrics"
)

// Enabled gates whether NewRegisteredCounter registers the counters it
// creates, mirroring the teacher's global on/off switch. It is read when a
// counter is created: a counter created while Enabled is false still
// counts, but it is never added to a registry, even if Enabled is set later.
var Enabled = false

// DefaultRegistry is the registry NewRegisteredCounter registers into when
// the caller doesn't supply one.
var DefaultRegistry = gometrics.NewRegistry()

// NewRegisteredCounter creates and registers a Counter under name in r (or
// DefaultRegistry if r is nil). When metrics are disabled it still returns
// a usable, unregistered counter so call sites never need a nil check.
func NewRegisteredCounter(name string, r gometrics.Registry) gometrics.Counter {
	c := gometrics.NewCounter()
	if !Enabled {
		return c
	}
	if r == nil {
		r = DefaultRegistry
	}
	r.Register(name, c)
	return c
}

// Handler renders DefaultRegistry in the Prometheus text exposition format,
// walking the rcrowley registry the way its own WriteJSONOnce walks it for
// the JSON export, but emitting "name value" lines instead.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		DefaultRegistry.Each(func(name string, i interface{}) {
			if c, ok := i.(gometrics.Counter); ok {
				fmt.Fprintf(w, "%s %d\n", sanitizeName(name), c.Count())
			}
		})
	})
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' || r == '-' || r == '.' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
