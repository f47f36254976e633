// Package hub tracks live real-time connections and fans messages out to them.
//
// Registry is the set of open connections. A connection leaves the set when
// its Done channel closes (peer close or read error), when a delivery to it
// fails, or when Unregister is called.
//
// Broadcaster serializes a message once and delivers the same bytes to every
// open connection concurrently, waiting until every delivery has either
// succeeded or failed. Only one fanout runs at a time, so two sequential
// broadcasts reach each connection in order.
package hub
