// Package wlcommons holds the protocol description and argument model shared
// by clients and servers of a wayland-style object protocol.
//
// A protocol is a set of interfaces. Each interface has a version and two
// ordered lists of messages: requests, sent by clients, and events, sent by
// servers. A message is described by a MessageDesc whose signature is the
// exact ordered list of argument types found on the wire. Messages that
// create objects carry a single new_id argument and name the interface of
// the object they create; messages marked as destructors make the object
// they address permanently invalid once applied.
//
// Interface tables are immutable and may be shared between goroutines without
// locking. Argument values and ObjectInfo records belong to one connection at
// a time.
//
// Argument values are generic over the object identifier type so that a thin
// client can use plain ObjectID integers while a server uses richer handles
// that track liveness (see the registry package). Nothing in this package
// performs I/O: the wire, socket and registry packages build on it.
package wlcommons
