// Package client implements the replica side of the dDoc data plane: a store
// client that sends resource requests to physical replica addresses over the
// RPC transports.
//
// Key Components:
//
//   - StoreClient: Implements replica.IStoreClient. The URI scheme of a replica
//     address selects the transport, the host and the replica id are taken from
//     the URI. Failed replica responses are converted into dberr errors; a
//     replica that cannot be reached is reported as 410 Gone so the retry
//     policies refresh the address caches.
//
//   - Address: Parsed physical replica URI.
//
// Usage Example:
//
//	store, err := client.NewStoreClient(config.TransportConf, serializer.NewBinarySerializer(),
//	  map[string]transport.IRPCClientTransport{"tcp": tcp.NewTCPClientTransport()})
//	resp, err := store.Invoke(ctx, "tcp://10.0.0.1:7100/?replica=1", req)
//
// Thread Safety:
//
//	StoreClient is safe for concurrent use from multiple goroutines.
package client
