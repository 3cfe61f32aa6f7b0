package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/jstore/cmd/util"
	"github.com/ValentinKolb/jstore/lib/registry"
	"github.com/ValentinKolb/jstore/rest/common"
	"github.com/ValentinKolb/jstore/rest/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the jstore server",
		Long:    `Start the jstore server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is JSTORE_<flag> (e.g. JSTORE_HOME=/var/lib/jstore)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "home"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("The home directory, every source is a subdirectory of it"))

	key = "recovery-workers"
	ServeCmd.PersistentFlags().Int(key, registry.DefaultRecoveryWorkers, cmdUtil.WrapString("How many sources are recovered in parallel at startup"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 30, cmdUtil.WrapString("Read and write timeout of HTTP requests in seconds (0 disables the timeout)"))

	key = "max-body"
	ServeCmd.PersistentFlags().Int64(key, 16<<20, cmdUtil.WrapString("Maximum size of a request body in bytes"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.HomeDir = viper.GetString("home")
	serveCmdConfig.RecoveryWorkers = viper.GetInt("recovery-workers")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.MaxBodyBytes = viper.GetInt64("max-body")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.HomeDir == "" {
		return fmt.Errorf("home directory must not be empty")
	}
	if serveCmdConfig.RecoveryWorkers < 1 {
		return fmt.Errorf("recovery-workers must be at least 1, got %d", serveCmdConfig.RecoveryWorkers)
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run recovers the registry, serves it until SIGINT or SIGTERM and flushes every store on exit
func run(_ *cobra.Command, _ []string) error {
	server.Logger.Infof("Starting jstore with configuration:\n%s", serveCmdConfig.String())

	reg, err := registry.New(
		serveCmdConfig.HomeDir,
		registry.WithRecoveryWorkers(serveCmdConfig.RecoveryWorkers),
	)
	if err != nil {
		return err
	}
	defer reg.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.NewServer(reg, *serveCmdConfig).Serve(ctx)
}
