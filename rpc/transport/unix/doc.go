// Package unix implements the Unix domain socket transport, the natural choice
// when the UI process and the backend run on the same host. Framing, the client
// socket and the server loop come from the base package.
//
// The server removes a stale socket file before listening on the endpoint path.
package unix
