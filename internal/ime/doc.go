// Package ime drives a gamescope input-method session over Wayland.
//
// # Data Flow
//
//	stdin bytes → keystroke.Reader → Action → Client.Apply
//	                                              ↓
//	                         set_string / set_action (× n)
//	                                              ↓
//	                               commit(serial) → round-trip
//	                                              ↓
//	                        done(serial) / unavailable → Session
//
// # Session Model
//
// The compositor announces a serial with every done event. Each commit
// must carry the latest serial, so Client.Apply ends with a round-trip:
// by the time the next action is applied, the done event answering the
// previous commit has been dispatched into the Session.
//
// An unavailable event is final. Apply refuses to send anything once it
// has been seen, and also before the first serial has arrived.
//
// # Bootstrap
//
// Open connects to the socket, binds wl_seat and
// gamescope_input_method_manager from the registry, creates the input
// method for the seat and waits for the first serial. Conn.Close tears
// the objects down in reverse order.
package ime
