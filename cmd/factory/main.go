package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/context-factory/common"
	"github.com/ruteri/context-factory/factory"
	"github.com/ruteri/context-factory/httpserver"
	"github.com/ruteri/context-factory/interfaces"
	"github.com/ruteri/context-factory/payload"
	"github.com/ruteri/context-factory/platform"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "metrics-addr",
		Value: "127.0.0.1:8090",
		Usage: "address to listen on for Prometheus metrics",
	},
	&cli.StringFlag{
		Name:     "factory-id",
		Usage:    "the factory's own context name (children are provisioned under it)",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "platform-rpc",
		Value: "",
		Usage: "platform node RPC URL; empty runs an in-memory platform simulator",
	},
	&cli.StringFlag{
		Name:  "payload-backend",
		Value: "",
		Usage: "payload persistence URI (file://, s3://, vault://, ipfs://); empty keeps the payload in memory only",
	},
	&cli.StringFlag{
		Name:     "payload-file",
		Usage:    "file holding the default payload installed until the first replacement",
		Required: true,
	},
	&cli.StringFlag{
		Name:  "cost-per-byte",
		Value: "10",
		Usage: "storage deposit cost per payload byte, in atomic currency units",
	},
	&cli.Uint64Flag{
		Name:  "init-budget",
		Value: factory.DefaultInitBudget,
		Usage: "execution-resource budget for the child init call",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: common.PackageName,
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "factory",
		Usage: "Serve the context factory provisioning API",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			metricsAddr := cCtx.String("metrics-addr")
			platformRPC := cCtx.String("platform-rpc")
			payloadBackendURI := cCtx.String("payload-backend")
			payloadFile := cCtx.String("payload-file")
			logJSON := cCtx.Bool("log-json")
			logDebug := cCtx.Bool("log-debug")
			logUID := cCtx.Bool("log-uid")
			logService := cCtx.String("log-service")
			enablePprof := cCtx.Bool("pprof")
			drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

			logger := common.SetupLogger(&common.LoggingOpts{
				Debug:   logDebug,
				JSON:    logJSON,
				Service: logService,
				Version: common.Version,
			})

			if logUID {
				id := uuid.Must(uuid.NewRandom())
				logger = logger.With("uid", id.String())
			}

			factoryID, err := interfaces.NewContextName(cCtx.String("factory-id"))
			if err != nil {
				logger.Error("Invalid factory identity", "err", err)
				return err
			}

			costPerByte, err := interfaces.FundsFromString(cCtx.String("cost-per-byte"))
			if err != nil {
				logger.Error("Invalid cost-per-byte", "err", err)
				return err
			}

			defaultPayload, err := os.ReadFile(payloadFile)
			if err != nil {
				logger.Error("Failed to read default payload file", "err", err, "file", payloadFile)
				return err
			}

			ctx := context.Background()

			var backend interfaces.PayloadBackend
			if payloadBackendURI != "" {
				backend, err = payload.BackendFor(payloadBackendURI, logger)
				if err != nil {
					logger.Error("Failed to create payload backend", "err", err)
					return err
				}
				logger.Info("Payload persistence enabled", "location", backend.LocationURI())
			}

			store, err := payload.NewStore(ctx, factoryID, defaultPayload, backend, logger)
			if err != nil {
				logger.Error("Failed to initialize payload store", "err", err)
				return err
			}

			var plat interfaces.Platform
			if platformRPC != "" {
				logger.Info("Connecting to platform RPC", "address", platformRPC)
				rpcPlatform, err := platform.DialRPCPlatform(ctx, platformRPC, logger)
				if err != nil {
					logger.Error("Failed to dial platform RPC", "err", err)
					return err
				}
				defer rpcPlatform.Close()
				plat = rpcPlatform
			} else {
				logger.Info("No platform RPC configured, using in-memory simulator")
				mock := platform.NewMockPlatform()
				mock.SetAutoSettle(true)
				// Seed the simulated factory balance so local provisioning
				// batches can fund their transfer step.
				mock.Fund(factoryID, interfaces.NewFunds(1_000_000_000_000))
				plat = mock
			}

			fac, err := factory.New(&factory.Config{
				Identity:   factoryID,
				Store:      store,
				Platform:   plat,
				Accountant: factory.NewAccountant(costPerByte),
				InitBudget: cCtx.Uint64("init-budget"),
				Log:        logger,
			})
			if err != nil {
				logger.Error("Failed to create factory", "err", err)
				return err
			}

			cfg := &httpserver.HTTPServerConfig{
				ListenAddr:               listenAddr,
				MetricsAddr:              metricsAddr,
				Log:                      logger,
				EnablePprof:              enablePprof,
				DrainDuration:            drainDuration,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			server, err := httpserver.New(cfg, httpserver.NewHandler(fac, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting factory server",
				"factoryID", factoryID.String(),
				"payloadSize", store.Size(),
				"costPerByte", costPerByte.String())
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
