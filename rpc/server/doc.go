// Package server hosts replicas behind an RPC server transport.
//
// A server owns a transport (tcp, unix or http), a serializer and an
// IReplicaHandler. Every frame carries the id of the addressed replica, so one
// server can host a whole replica set: the physical addresses
//
//	tcp://host:port/?replica=0
//	tcp://host:port/?replica=1
//
// reach the replicas 0 and 1 of the same process. Requests for a replica id
// outside of the configured set are answered with 410 Gone so that clients
// refresh their cached addresses.
//
// Key Components:
//
//   - IReplicaHandler: serves a resource.Request at one replica. Errors are
//     dberr errors, their status pair and retry hints are sent back as headers.
//
//   - MemoryReplicas: an in memory handler for development and tests. Writes
//     advance the LSN of the partition, reads under a session token that the
//     partition has not reached yet fail with 404/1002.
//
//   - NewRPCServer: creates a server from a common.ServerConfig.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Transport:     "tcp",
//	  TransportConf: common.ServerTransportConfig{Endpoint: "0.0.0.0:9100", TimeoutSecond: 5},
//	  Replicas:      4,
//	  Serializer:    "binary",
//	  LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPServerTransport(),
//	  serializer.NewBinarySerializer(),
//	  server.NewMemoryReplicas(config.Replicas),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	Requests are served concurrently, the handler must be safe for concurrent
//	use. Serve blocks until Close is called.
package server
