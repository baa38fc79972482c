package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/scired/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "scired",
		Short: "redis protocol bridge to a CQL cluster",
		Long: fmt.Sprintf(`scired (v%s)

Serves GET and SET of the redis protocol from a replicated
CQL cluster (Cassandra, ScyllaDB). Any redis client can read
and write the strings table without knowing about the cluster.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of scired",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scired v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
