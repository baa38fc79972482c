package serve

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/scired/cmd/util"
	"github.com/ValentinKolb/scired/rpc/common"
	"github.com/ValentinKolb/scired/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the scired server",
		Long: `Start the scired server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is SCIRED_<flag> (e.g. SCIRED_STORE_HOSTS=10.0.0.1:9042,10.0.0.2:9042)

The server runs until it receives SIGINT or SIGTERM. It then stops accepting, closes idle connections, answers requests that are already in progress and exits once every connection is closed.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	defaults := common.DefaultServerConfig()

	// redis endpoint
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.Endpoint, cmdUtil.WrapString("The address on which the redis protocol endpoint will listen"))

	key = "tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, defaults.TCPNoDelay, cmdUtil.WrapString("Whether to enable TCP_NODELAY on accepted connections"))

	key = "tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, defaults.TCPKeepAliveSec, cmdUtil.WrapString("The keepalive interval of accepted connections in seconds (0 keeps the OS default)"))

	key = "accept-backoff-base"
	ServeCmd.PersistentFlags().Duration(key, defaults.AcceptBackoffBase, cmdUtil.WrapString("Delay after the first failed accept. The delay doubles with every further consecutive failure"))

	key = "accept-backoff-max"
	ServeCmd.PersistentFlags().Duration(key, defaults.AcceptBackoffMax, cmdUtil.WrapString("Once the accept delay would exceed this value the server gives up and exits with an error"))

	key = "write-timeout"
	ServeCmd.PersistentFlags().Duration(key, defaults.WriteTimeout, cmdUtil.WrapString("Deadline for writing a single response to a client (0 disables the deadline)"))

	// backing store
	key = "store"
	ServeCmd.PersistentFlags().String(key, string(defaults.StoreType), cmdUtil.WrapString("Backing store to use (cql, memory). The memory store keeps data only for the lifetime of the process"))

	key = "store-hosts"
	ServeCmd.PersistentFlags().String(key, strings.Join(defaults.StoreHosts, ","), cmdUtil.WrapString("Comma-separated list of initial cluster contact points (e.g. 10.0.0.1:9042,10.0.0.2:9042)"))

	key = "keyspace"
	ServeCmd.PersistentFlags().String(key, defaults.Keyspace, cmdUtil.WrapString("Keyspace of the strings table"))

	key = "table"
	ServeCmd.PersistentFlags().String(key, defaults.Table, cmdUtil.WrapString("Name of the strings table. Expected schema: (key text PRIMARY KEY, value text)"))

	key = "connect-timeout"
	ServeCmd.PersistentFlags().Duration(key, defaults.ConnectTimeout, cmdUtil.WrapString("Timeout for establishing connections to the cluster"))

	key = "store-timeout"
	ServeCmd.PersistentFlags().Duration(key, defaults.StoreTimeout, cmdUtil.WrapString("Timeout for a single query against the cluster"))

	key = "consistency-get"
	ServeCmd.PersistentFlags().String(key, defaults.ConsistencyGet, cmdUtil.WrapString("Consistency level of reads (one, two, quorum)"))

	key = "consistency-set"
	ServeCmd.PersistentFlags().String(key, defaults.ConsistencySet, cmdUtil.WrapString("Consistency level of writes (one, two, quorum)"))

	// operations
	key = "admin-endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.AdminEndpoint, cmdUtil.WrapString("The address of the admin HTTP endpoint serving /healthz, /metrics and /debug (empty disables it)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TCPNoDelay = viper.GetBool("tcp-nodelay")
	serveCmdConfig.TCPKeepAliveSec = viper.GetInt("tcp-keepalive")
	serveCmdConfig.AcceptBackoffBase = viper.GetDuration("accept-backoff-base")
	serveCmdConfig.AcceptBackoffMax = viper.GetDuration("accept-backoff-max")
	serveCmdConfig.WriteTimeout = viper.GetDuration("write-timeout")

	serveCmdConfig.StoreType = common.StoreType(strings.ToLower(viper.GetString("store")))
	serveCmdConfig.StoreHosts = cmdUtil.SplitList(viper.GetString("store-hosts"))
	serveCmdConfig.Keyspace = viper.GetString("keyspace")
	serveCmdConfig.Table = viper.GetString("table")
	serveCmdConfig.ConnectTimeout = viper.GetDuration("connect-timeout")
	serveCmdConfig.StoreTimeout = viper.GetDuration("store-timeout")
	serveCmdConfig.ConsistencyGet = viper.GetString("consistency-get")
	serveCmdConfig.ConsistencySet = viper.GetString("consistency-set")

	serveCmdConfig.AdminEndpoint = viper.GetString("admin-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the scired server and blocks until it was stopped by a signal
func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// usage errors are reported by PreRunE, failures from here on are runtime errors
	cmd.SilenceUsage = true

	return server.Run(ctx, serveCmdConfig)
}
