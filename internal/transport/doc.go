// Package transport carries boundary calls over a stream connection.
//
// Ownership boundary:
// - Server: serves a foreign heap on a listener, one goroutine per connection
// - Client: a bind.Boundary over one connection with id-correlated replies
// - release notifications pushed server->client as unsolicited frames
// - optional TLS on both ends
package transport
