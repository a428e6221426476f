// Package address resolves requests to the physical addresses of the replicas
// serving them.
//
// Resolution runs in three steps: the collection of the request is resolved
// through the collection cache, the partition key of the request is mapped to
// its partition key range through the routing map, and the replica addresses
// of that range are read from the gateway of the regional endpoint the
// request is routed to.
//
// Addresses are cached per lookup key (see LookupKey) in a GatewayAddressCache
// per regional endpoint. The gateway is only called when a key is missing or
// when the request asks for a refresh, which the replicated dispatch does
// after a replica answered with Gone. A cached AddressSet is never modified;
// refreshes replace it.
//
// Filtering keeps addresses of the configured protocol with a non empty URI
// and prefers internal addresses: public ones are only used if the replica set
// has no internal address at all.
package address
