// Package ddoc is the client of dDoc, a partitioned and replicated document
// database.
//
// A Client routes every document operation to the replica set of the
// partition that owns the document and applies the consistency level of the
// read. It keeps all metadata it needs in caches that are refreshed when the
// topology changes:
//
//   - the collection cache (name and resource id of collections)
//   - the routing map cache (partition key ranges, refreshed incrementally
//     after a split)
//   - the address caches of the regional gateways
//   - the session container (the highest LSN observed per partition)
//
// Requests pass two layers of retry policies. The replicated dispatch retries
// 410 Gone answers for a bounded time window after refreshing the stale cache;
// around it the client retries failovers to another region, reads that missed
// the session and throttled requests.
//
// Usage Example:
//
//	config := common.DefaultClientConfig()
//	config.AccountEndpoint = "http://localhost:8081"
//	config.MasterKey = os.Getenv("DDOC_MASTER_KEY")
//
//	client, err := ddoc.Open(ctx, config)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer client.Close()
//
//	_, err = client.CreateDocument(ctx, "dbs/shop/colls/orders", []byte(`{"id":"o1","tenant":"acme"}`), nil)
//
//	key := pkey.NewKey(pkey.String("acme"))
//	resp, err := client.ReadDocument(ctx, "dbs/shop/colls/orders", "o1", &ddoc.RequestOptions{PartitionKey: &key})
//
// Feeds without a partition key span all partitions. Each page is read from
// one partition; the continuation of the page records the key range the feed
// reached and stays valid when that partition splits.
package ddoc
