// Package terminal implements the server side of the browser terminal:
// a registry of per-user shell sessions, a PTY-backed shell process
// adapter, the WebSocket-to-PTY stream bridge, and the lifecycle
// controller that ties them together.
//
// A session is created by the HTTP start endpoint, which spawns a shell
// on a freshly allocated pseudo-terminal. The browser then opens a
// WebSocket addressed by the session ID and the bridge pumps bytes in
// both directions until either side closes. Disconnecting the socket
// detaches the session (the shell keeps running and buffers output for
// replay); deleting the session or the idle sweep terminates the shell
// and removes the registry entry.
package terminal
