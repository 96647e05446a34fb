// Package navigation executes route guard decisions.
//
// Effect is the only place in the console that changes the location. It
// ignores Allow and Pending, and it will not issue a second navigation to a
// target that is still in flight, so a burst of identical decisions (for
// example several session snapshots arriving together) yields one redirect.
// A target is released when Arrived reports the location reached it, or
// after the pending timeout.
//
// History is the in-process Navigator used by the console.
package navigation
