package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/lib/address"
	"github.com/ValentinKolb/dDoc/lib/auth"
	"github.com/ValentinKolb/dDoc/lib/gateway"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/lib/routing"
	rpcclient "github.com/ValentinKolb/dDoc/rpc/client"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/server"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

var Logger = logger.GetLogger("serve")

// collectionSpec is one entry of the collections flag
type collectionSpec struct {
	link   string
	paths  []string
	ranges int
}

var (
	serveCmdConfig = &common.ServerConfig{}
	serveOpts      = struct {
		gatewayEndpoint string
		masterKey       string
		collections     []collectionSpec
	}{}

	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start a development account",
		Long: `Start a development account: a gateway serving the metadata of the configured collections and a replica host keeping their documents in memory. The configuration can be set via command line flags or environment variables. The format of the environment variables is DDOC_<flag> (e.g. DDOC_REPLICAS=3)

Every partition of every collection is served by all replicas of the host, clients talk to the gateway with the account endpoint http://<gateway-endpoint>.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "collections"
	ServeCmd.PersistentFlags().String(key, "dbs/db/colls/docs=/id:4", cmdUtil.WrapString("Comma-separated list of collections to serve. Format: LINK=PATHS:RANGES where PATHS is a '|' separated list of partition key paths (e.g. dbs/shop/colls/orders=/tenant:4)"))

	key = "replicas"
	ServeCmd.PersistentFlags().Int(key, 3, cmdUtil.WrapString("Number of replicas of every partition, the first one is the primary"))

	key = "transport"
	ServeCmd.PersistentFlags().String(key, "tcp", cmdUtil.WrapString("Transport of the replica host (tcp, unix, http)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:8090", cmdUtil.WrapString("The address on which the replica host will listen (e.g. localhost:8090, /tmp/ddoc.sock, ...)"))

	key = "gateway-endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:8081", cmdUtil.WrapString("The address on which the gateway will listen, it is also advertised as the account endpoint"))

	key = "master-key"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("The base64 encoded master key the gateway verifies requests with, unsigned requests are accepted if empty"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int(key, 5, cmdUtil.WrapString("Timeout of replica requests in seconds"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 8, cmdUtil.WrapString("Number of workers per replica connection"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse collections
	serveOpts.collections = nil
	for _, entry := range strings.Split(viper.GetString("collections"), ",") {
		spec, err := parseCollection(strings.TrimSpace(entry))
		if err != nil {
			return err
		}
		serveOpts.collections = append(serveOpts.collections, spec)
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.Replicas = viper.GetInt("replicas")
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.LogLevel = viper.GetString("log-level")
	serveCmdConfig.TransportConf = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		TimeoutSecond:  viper.GetInt("timeout"),
		WorkersPerConn: viper.GetInt("workers"),
		TCPConf:        common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1},
	}
	serveOpts.gatewayEndpoint = viper.GetString("gateway-endpoint")
	serveOpts.masterKey = viper.GetString("master-key")

	if serveCmdConfig.Replicas < 1 {
		return fmt.Errorf("at least one replica is required")
	}
	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the gateway and the replica host and blocks until both are stopped
func run(_ *cobra.Command, _ []string) error {
	ser, err := serializer.ByName(serveCmdConfig.Serializer)
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetServerTransport(serveCmdConfig.Transport)
	if err != nil {
		return err
	}

	var verifier gateway.IVerifier
	if serveOpts.masterKey != "" {
		signer, err := auth.NewKeySigner(serveOpts.masterKey)
		if err != nil {
			return err
		}
		verifier = signer
	}

	catalog := gateway.NewCatalog("ddoc-dev", "http://"+serveOpts.gatewayEndpoint)
	replicaURIs := make([]address.Info, serveCmdConfig.Replicas)
	for i := range replicaURIs {
		uri := rpcclient.Address{Scheme: serveCmdConfig.Transport, Host: serveCmdConfig.TransportConf.Endpoint, Replica: uint64(i)}.String()
		replicaURIs[i] = address.Info{PhysicalURI: uri, IsPrimary: i == 0, Protocol: serveCmdConfig.Transport}
	}
	for i, spec := range serveOpts.collections {
		rid := "coll" + strconv.Itoa(i)
		catalog.AddCollection(spec.link, rid, &pkey.Definition{Paths: spec.paths}, splitRanges(spec.ranges)...)
		for _, r := range catalog.Ranges(rid) {
			catalog.SetAddresses(rid, r.ID, replicaURIs)
		}
		Logger.Infof("serving %s (rid %s) with %d partitions", spec.link, rid, spec.ranges)
	}
	catalog.SetMasterAddresses(replicaURIs)

	gw := gateway.NewServer(catalog, verifier)
	replicas := server.NewRPCServer(*serveCmdConfig, t, ser, server.NewMemoryReplicas(serveCmdConfig.Replicas))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// a listener that fails cancels ctx and stops the other one
	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	p.Go(func(context.Context) error { return replicas.Serve() })
	p.Go(func(context.Context) error { return gw.Listen(serveOpts.gatewayEndpoint) })
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		Logger.Infof("shutting down")
		return multierr.Append(gw.Close(), replicas.Close())
	})
	return p.Wait()
}

// initConfig reads in serveCmdConfig file and ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ddoc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// parseCollection parses LINK=PATHS:RANGES
func parseCollection(entry string) (collectionSpec, error) {
	link, rest, ok := strings.Cut(entry, "=")
	if !ok || link == "" {
		return collectionSpec{}, fmt.Errorf("invalid collection format: %s (expected LINK=PATHS:RANGES)", entry)
	}
	spec := collectionSpec{link: strings.Trim(link, "/"), ranges: 1}

	paths, count, hasCount := strings.Cut(rest, ":")
	if hasCount {
		n, err := strconv.Atoi(count)
		if err != nil || n < 1 || n > 255 {
			return collectionSpec{}, fmt.Errorf("invalid range count %s of %s (expected 1-255)", count, link)
		}
		spec.ranges = n
	}
	for _, p := range strings.Split(paths, "|") {
		if _, err := pkey.ParsePath(p); err != nil {
			return collectionSpec{}, fmt.Errorf("invalid partition key path %s of %s: %w", p, link, err)
		}
		spec.paths = append(spec.paths, p)
	}
	return spec, nil
}

// splitRanges divides the effective partition key space into n ranges with
// one byte boundaries
func splitRanges(n int) []routing.PartitionKeyRange {
	ranges := make([]routing.PartitionKeyRange, n)
	lo := pkey.MinimumInclusiveEffectivePartitionKey
	for i := range ranges {
		hi := pkey.MaximumExclusiveEffectivePartitionKey
		if i < n-1 {
			hi = fmt.Sprintf("%02X", (i+1)*256/n)
		}
		ranges[i] = routing.PartitionKeyRange{ID: strconv.Itoa(i), MinInclusive: lo, MaxExclusive: hi}
		lo = hi
	}
	return ranges
}
