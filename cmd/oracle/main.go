package main

import (
	"context"
	"errors"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/chainballot/voter-oracle/biometric"
	"github.com/chainballot/voter-oracle/common"
	"github.com/chainballot/voter-oracle/httpserver"
	"github.com/chainballot/voter-oracle/identity"
	"github.com/chainballot/voter-oracle/ledger"
	"github.com/chainballot/voter-oracle/metrics"
	"github.com/chainballot/voter-oracle/otp"
	"github.com/chainballot/voter-oracle/relay"
	"github.com/chainballot/voter-oracle/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "rpc-addr",
		Value: "ws://127.0.0.1:8546",
		Usage: "address to connect to RPC, websocket required for the event subscription",
	},
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
		Name:     "governance-contract",
		Required: true,
		Usage:    "address of the governance contract",
	},
	&cli.StringFlag{
		Name:    "signer-key",
		EnvVars: []string{"ORACLE_SIGNER_KEY"},
		Usage:   "hex-encoded private key of the privileged oracle account",
	},
	&cli.Int64Flag{
		Name:  "chain-id",
		Value: 1337,
		Usage: "chain id used for transaction signing",
	},
	&cli.StringFlag{
		Name:  "directory-uri",
		Value: "file://./voters",
		Usage: "voter directory location (file://, s3://, vault:// or memory://)",
	},
	&cli.StringFlag{
		Name:    "twilio-account-sid",
		EnvVars: []string{"TWILIO_ACCOUNT_SID"},
		Usage:   "Twilio account SID for the verification service",
	},
	&cli.StringFlag{
		Name:    "twilio-auth-token",
		EnvVars: []string{"TWILIO_AUTH_TOKEN"},
		Usage:   "Twilio auth token",
	},
	&cli.StringFlag{
		Name:    "twilio-verify-service",
		EnvVars: []string{"TWILIO_VERIFY_SERVICE_SID"},
		Usage:   "Twilio Verify service SID",
	},
	&cli.StringFlag{
		Name:  "twilio-channel",
		Value: "sms",
		Usage: "delivery channel for one-time codes (sms, call, email)",
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
		Value: "voter-oracle",
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
		Name:  "voter-oracle",
		Usage: "Authorize voters on-chain and relay governance events",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			rpcAddress := cCtx.String("rpc-addr")
			listenAddr := cCtx.String("listen-addr")
			metricsAddr := cCtx.String("metrics-addr")
			contractAddr := cCtx.String("governance-contract")
			signerKey := cCtx.String("signer-key")
			chainID := cCtx.Int64("chain-id")
			directoryURI := cCtx.String("directory-uri")
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

			if !gethcommon.IsHexAddress(contractAddr) {
				logger.Error("Invalid governance contract address", "address", contractAddr)
				return errors.New("invalid governance-contract address")
			}

			logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
			ethClient, err := ethclient.Dial(rpcAddress)
			if err != nil {
				logger.Error("Failed to dial RPC", "err", err)
				return err
			}

			governance, err := ledger.NewGovernanceClient(ethClient, ethClient, gethcommon.HexToAddress(contractAddr), logger)
			if err != nil {
				logger.Error("Failed to create governance client", "err", err)
				return err
			}

			if signerKey != "" {
				opts, err := ledger.TransactorFromHexKey(signerKey, big.NewInt(chainID))
				if err != nil {
					logger.Error("Failed to parse signer key", "err", err)
					return err
				}
				governance.SetTransactOpts(opts)
				logger.Info("Oracle signer configured", "account", opts.From.Hex())
			} else {
				logger.Warn("No signer key provided, grant submissions will fail")
			}

			directoryFactory := storage.NewDirectoryFactory(logger)
			directory, err := directoryFactory.DirectoryFor(directoryURI)
			if err != nil {
				logger.Error("Failed to open voter directory", "err", err, "uri", directoryURI)
				return err
			}

			store, err := identity.NewStore(context.Background(), directory, logger)
			if err != nil {
				logger.Error("Failed to load voter directory", "err", err)
				return err
			}

			codes, err := otp.NewTwilioGate(
				cCtx.String("twilio-account-sid"),
				cCtx.String("twilio-auth-token"),
				cCtx.String("twilio-verify-service"),
				cCtx.String("twilio-channel"),
				logger)
			if err != nil {
				logger.Error("Failed to configure code provider", "err", err)
				return err
			}

			oracleMetrics := metrics.NewMetrics()
			gate := biometric.NewGate(store, logger)

			eventRelay := relay.New(governance, oracleMetrics, logger)
			relayCtx, stopRelay := context.WithCancel(context.Background())
			defer stopRelay()
			go eventRelay.Run(relayCtx)

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

			handler := httpserver.NewHandler(store, codes, gate, governance, eventRelay, oracleMetrics, logger)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			stopRelay()
			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
