// Package rpc is the replica protocol of dDoc: it carries resource requests
// from the client to the replicas that own a partition and brings back their
// responses, including LSN, session token and request charge headers.
//
// The package is organized into several subpackages:
//
//   - common: The Message exchanged with replicas, the client and replica host
//     configuration, and the logger setup shared by all dDoc packages.
//
//   - transport: Framed tcp and unix transports and an http transport. Client
//     transports address any replica host given in a physical replica URI.
//
//   - serializer: Message codecs (Binary, JSON, GOB, CBOR).
//
//   - client: The StoreClient used by the replicated dispatch. It parses replica
//     URIs and maps replica status codes into dberr errors.
//
//   - server: The replica host serving an IReplicaHandler, and MemoryReplicas,
//     an in memory replica set for development and tests.
package rpc
