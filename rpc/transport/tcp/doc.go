// Package tcp implements the TCP socket transport of the replica RPC. It
// provides the TCP specific implementations of the base package's connector
// interfaces, applying the TCPConf and SocketConf options to every connection.
//
// See the base package documentation for the framing, connection pooling and
// request correlation both sides inherit.
package tcp
