// Package unix implements the replica RPC transport over Unix domain sockets,
// for replica hosts running on the same machine as the client.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, replacing a stale socket file
package unix
