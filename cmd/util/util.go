package util

import (
	"context"
	"fmt"
	"strings"

	"github.com/ValentinKolb/dDoc/lib/ddoc"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"github.com/ValentinKolb/dDoc/rpc/transport/http"
	"github.com/ValentinKolb/dDoc/rpc/transport/tcp"
	"github.com/ValentinKolb/dDoc/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the account, policy and transport flags of a client to a command
func SetupClientFlags(cmd *cobra.Command) {
	defaults := common.DefaultClientConfig()
	flags := cmd.PersistentFlags()

	key := "account-endpoint"
	flags.String(key, defaults.AccountEndpoint, WrapString("The gateway endpoint of the default region of the account"))

	key = "master-key"
	flags.String(key, "", WrapString("The base64 encoded master key of the account, requests are not signed if empty"))

	key = "consistency"
	flags.String(key, "", WrapString("The default consistency of reads (Strong, BoundedStaleness, Session, Eventual), the account default if empty"))

	key = "preferred-locations"
	flags.String(key, "", WrapString("Comma-separated list of regions to prefer, in order"))

	key = "endpoint-discovery"
	flags.Bool(key, defaults.EnableEndpointDiscovery, WrapString("Whether to fail over to other regions of the account"))

	key = "gateway-timeout"
	flags.Int(key, defaults.GatewayTimeoutSecond, WrapString("The timeout in seconds of gateway requests"))

	key = "max-replica-set-size"
	flags.Int(key, defaults.MaxReplicaSetSize, WrapString("The replica count the read quorum is derived from"))

	key = "gone-window"
	flags.Int(key, defaults.Retry.GoneWindowSecond, WrapString("How long (in seconds) requests are retried while the topology changes"))

	key = "throttle-retries"
	flags.Int(key, defaults.Retry.ThrottleMaxRetries, WrapString("How often throttled requests are retried"))

	key = "protocol"
	flags.String(key, defaults.Protocol, WrapString("The transport used to reach the replicas (tcp, unix, http)"))

	key = "timeout"
	flags.Int(key, defaults.TransportConf.TimeoutSecond, WrapString("The timeout in seconds of replica requests"))

	key = "transport-conn-per-endpoint"
	flags.Int(key, defaults.TransportConf.ConnectionsPerEndpoint, WrapString("Simultaneous connections per replica host - for transports that support this feature"))

	key = "transport-retries"
	flags.Int(key, defaults.TransportConf.RetryCount, WrapString("How many times to retry sending a request to a replica"))

	key = "transport-write-buffer"
	flags.Int(key, 512, WrapString("The size of the write buffer for the transport (in KB, ignored for http)"))

	key = "transport-read-buffer"
	flags.Int(key, 512, WrapString("The size of the read buffer for the transport (in KB, ignored for http)"))

	key = "transport-tcp-nodelay"
	flags.Bool(key, true, WrapString("Whether to enable TCP_NODELAY for the transport (only for TCPConf)"))

	key = "transport-tcp-keepalive"
	flags.Int(key, 0, WrapString("The keepalive interval for the transport (in seconds, only for TCPConf)"))

	key = "transport-tcp-linger"
	flags.Int(key, -1, WrapString("The linger time for the transport (in seconds, only for TCPConf, < 0 keeps the OS default)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ddoc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() common.ClientConfig {
	conf := common.DefaultClientConfig()

	conf.AccountEndpoint = viper.GetString("account-endpoint")
	conf.MasterKey = viper.GetString("master-key")
	conf.ConsistencyLevel = viper.GetString("consistency")
	conf.PreferredLocations = splitList(viper.GetString("preferred-locations"))
	conf.EnableEndpointDiscovery = viper.GetBool("endpoint-discovery")
	conf.GatewayTimeoutSecond = viper.GetInt("gateway-timeout")
	conf.MaxReplicaSetSize = viper.GetInt("max-replica-set-size")
	conf.Retry.GoneWindowSecond = viper.GetInt("gone-window")
	conf.Retry.ThrottleMaxRetries = viper.GetInt("throttle-retries")
	conf.Protocol = viper.GetString("protocol")
	conf.Serializer = viper.GetString("serializer")
	conf.LogLevel = viper.GetString("log-level")

	conf.TransportConf = common.ClientTransportConfig{
		TimeoutSecond:          viper.GetInt("timeout"),
		RetryCount:             viper.GetInt("transport-retries"),
		ConnectionsPerEndpoint: viper.GetInt("transport-conn-per-endpoint"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		},
	}

	return conf
}

// OpenClient binds the flags of cmd and opens a client with the resulting configuration
func OpenClient(ctx context.Context, cmd *cobra.Command) (*ddoc.Client, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}
	config := GetClientConfig()
	if err := common.InitLoggers(config.LogLevel); err != nil {
		return nil, err
	}
	return ddoc.Open(ctx, config)
}

// GetServerTransport creates the server transport with the given name
func GetServerTransport(name string) (transport.IRPCServerTransport, error) {
	switch name {
	case "http":
		return http.NewHttpServerTransport(), nil
	case "tcp":
		return tcp.NewTCPServerTransport(), nil
	case "unix":
		return unix.NewUnixServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// ParsePartitionKey parses a partition key given as JSON array (e.g. '["acme"]'),
// nil if s is empty
func ParsePartitionKey(s string) (*pkey.Key, error) {
	if s == "" {
		return nil, nil
	}
	key, err := pkey.FromJSON(s)
	if err != nil {
		return nil, fmt.Errorf("invalid partition key %s: %w", s, err)
	}
	return &key, nil
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
