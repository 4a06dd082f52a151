// Package ipc exposes the typing session's status on the D-Bus session bus
// so desktop tooling can tell whether input is live.
package ipc

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/godbus/dbus/v5"

	"imetype/internal/ime"
	"imetype/internal/metrics"
)

// Interface is the D-Bus interface name of the status object.
const Interface = "io.github.imetype.Session"

// StateSource reports the current session state. *ime.Session
// implements it.
type StateSource interface {
	State() ime.State
}

// Object is the exported status object. Its exported methods are the
// D-Bus methods of Interface.
type Object struct {
	session StateSource
	metrics *metrics.SessionMetrics
	started time.Time
}

// NewObject returns a status object reading from session and m. A nil m
// reports empty metrics.
func NewObject(session StateSource, m *metrics.SessionMetrics) *Object {
	if m == nil {
		m = metrics.NewSessionMetrics(nil)
	}
	return &Object{
		session: session,
		metrics: m,
		started: time.Now(),
	}
}

// Status returns the serial the next commit will use, whether the
// compositor still accepts input and whether a serial has been seen.
func (o *Object) Status() (serial uint32, available bool, ready bool, derr *dbus.Error) {
	st := o.session.State()
	return st.Serial, st.Available, st.Ready, nil
}

// Metrics returns the session metrics snapshot as a JSON object.
func (o *Object) Metrics() (string, *dbus.Error) {
	snap := o.metrics.Snapshot()
	snap["uptime_seconds"] = int64(time.Since(o.started).Seconds())

	data, err := json.Marshal(snap)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return string(data), nil
}

// Export returns every registered metric with its help text, labels and,
// for histograms, the cumulative bucket counts.
func (o *Object) Export() (string, *dbus.Error) {
	var buf bytes.Buffer
	if err := o.metrics.Registry().WriteJSON(&buf); err != nil {
		return "", dbus.MakeFailedError(err)
	}
	return buf.String(), nil
}
