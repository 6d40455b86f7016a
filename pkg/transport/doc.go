// Package transport decouples point cloud producers and consumers from the
// wire encoding used between them.
//
// A transport is a pair of plugins registered under role-suffixed lookup
// names: "<name>_pub" in Publishers and "<name>_sub" in Subscribers. The
// suffix is the only thing correlating the two; nothing checks that a pair
// actually agrees on a wire format.
//
// Plugins are usually built from SimplePublisher and SimpleSubscriber, which
// take an Encoder or Decoder for the transport's wire message type and handle
// topic naming, host wiring and shutdown. Applications normally go through
// Advertise and Subscribe, which resolve a transport by name.
package transport
