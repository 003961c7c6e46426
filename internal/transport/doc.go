// Package transport carries request/response exchanges to a single device
// over TCP.
//
// A Session owns one connection, opened lazily on the first Send. Each Send
// writes a signed packet and reads back exactly one frame, using the length
// field of the response header to know where the frame ends.
//
// # Failure Handling
//
// Any dial or socket failure drops the connection and is returned as a
// *ConnectionError carrying the device ip and port. The caller retries by
// issuing the command again, which reconnects and (one layer up) logs in
// again.
//
//	resp, err := session.Send(ctx, packet)
//	if transport.IsConnectionError(err) {
//	    // device unreachable, session already reset
//	}
//
// # Thread Safety
//
// A Session supports one request in flight. Pipelining is not supported by
// the devices and is not guarded against here.
package transport
