// Package common provides the data structures shared by the replica RPC
// client and server: the message protocol, configuration structures and logging.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between a client
//     and a replica. Requests carry the operation, resource address, headers
//     and body of a resource.Request; responses carry the replica status,
//     headers, body or error message.
//
//   - MessageType: Enumeration of the replica operations plus the success and
//     error response types.
//
//   - ServerConfig: Configuration of a replica host (transport, listener and
//     number of hosted replicas).
//
//   - ClientConfig: Configuration of a dDoc client, covering the account,
//     consistency, retry policy parameters and the replica transport.
//
//   - Logger: logrus backed implementation of dragonboat's logger factory, every
//     package logger tags its entries with the package name.
package common
