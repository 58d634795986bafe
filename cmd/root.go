package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arkevo/collabcore/config"
	domainCache "github.com/arkevo/collabcore/domains/cache"
	domainOperation "github.com/arkevo/collabcore/domains/operation"
	"github.com/arkevo/collabcore/infrastructure/localfiles"
	"github.com/arkevo/collabcore/infrastructure/valkey"
	"github.com/arkevo/collabcore/pkg/memcache"
	"github.com/arkevo/collabcore/pkg/notify"
	"github.com/arkevo/collabcore/pkg/taskqueue"
	"github.com/arkevo/collabcore/pkg/utils"
	"github.com/arkevo/collabcore/usecase"
)

var (
	cfg      *config.Config
	serverID string

	// Infrastructure
	vkClient   *valkey.Client
	bus        notify.Bus
	localCache *memcache.Cache
	registry   *taskqueue.Registry
	queue      *taskqueue.Queue
	queueStop  context.CancelFunc

	// Usecase
	cacheUsecase    domainCache.ICacheUsecase
	fileOpsUsecase  domainOperation.IFileOperationsUsecase
	reassignUsecase domainOperation.IReassignUsecase
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "collabcore",
	Short: "Distributed cache and background-operation core for the collaboration platform",
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	initFlags()
	cobra.OnInitialize(initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringP("port", "p", "3000",
		"change port number with --port <number> | example: --port=8080")
	rootCmd.PersistentFlags().BoolP("debug", "d", false,
		"hide or displaying log with --debug <true/false> | example: --debug=true")
	rootCmd.PersistentFlags().String("valkey-address", "",
		`valkey broker address for multi-node deployments --valkey-address <host:port> | example: --valkey-address="localhost:6379"`)
	rootCmd.PersistentFlags().Int("operation-workers", 0,
		"number of concurrent operation workers --operation-workers <number> | example: --operation-workers=20 (default: 10)")

	_ = viper.BindPFlag("app_port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("app_debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("valkey_address", rootCmd.PersistentFlags().Lookup("valkey-address"))
	_ = viper.BindPFlag("operation_workers", rootCmd.PersistentFlags().Lookup("operation-workers"))
}

func initApp() {
	var err error
	cfg, err = config.Load(".")
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	// Flag overrides
	if v := viper.GetString("app_port"); v != "" && viper.IsSet("app_port") {
		cfg.App.Port = v
	}
	if viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if v := viper.GetString("valkey_address"); v != "" {
		cfg.Valkey.Enabled = true
		cfg.Valkey.Address = v
	}
	if v := viper.GetInt("operation_workers"); v > 0 {
		cfg.Queue.Workers = v
	}

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.Infof("[APP] collabcore %s starting (%s)", cfg.App.Version, cfg.App.Environment)

	if err := utils.CreateFolder(cfg.Paths.Storages, cfg.Paths.TempFiles); err != nil {
		logrus.Errorln(err)
	}

	serverID = utils.GetPersistentServerID(cfg.App.ServerID, cfg.Paths.Storages)

	// Notification transport. No valkey configured is not an error: the
	// in-process transport is the degraded-but-correct single-node mode.
	if cfg.Valkey.Enabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			logrus.WithError(err).Warn("[APP] Valkey unavailable, falling back to in-process notifications")
			vkClient = nil
		}
	}
	if vkClient != nil {
		bus = notify.NewValkeyBus(vkClient)
		logrus.Infof("[APP] Multi-node notifications via valkey at %s", cfg.Valkey.Address)
	} else {
		bus = notify.NewMemoryBus()
		logrus.Info("[APP] Single-node in-process notifications")
	}

	// Cache
	localCache = memcache.New(cfg.Cache.JanitorInterval)
	cacheUsecase = usecase.NewCacheService(localCache, bus, cfg.Cache.NotifyChannel)

	// Background operations
	registry = taskqueue.NewRegistry(serverID, cfg.Queue.ReaperTimeout, cfg.Queue.RetainFinished)
	queue = taskqueue.NewQueue(registry, cfg.Queue.Workers, cfg.Queue.QueueSize)

	var queueCtx context.Context
	queueCtx, queueStop = context.WithCancel(context.Background())
	queue.Start(queueCtx)

	store := localfiles.NewStore(cfg.Paths.Storages)
	fileOpsUsecase = usecase.NewFileOperationsService(queue, registry, store, cacheUsecase, cfg.Paths.TempFiles)
	reassignUsecase = usecase.NewReassignService(queue, registry, store, cacheUsecase)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp performs a clean shutdown of the queue, cache and transport.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if queue != nil {
		queue.Stop()
	}
	if queueStop != nil {
		queueStop()
	}
	if bus != nil {
		bus.Close()
	}
	if localCache != nil {
		localCache.Close()
	}
	if vkClient != nil {
		vkClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
