package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/auth"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/escrow"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/shipment"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/app/txsigner"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/config"
	handler "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/handler/http"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/infra/evmrpc"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/infra/memory"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/infra/oracle"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/infra/postgres"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/infra/resolver"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/repository"
	"github.com/Tanmoy095/LogiSynapse/shared/kafka"
	"github.com/Tanmoy095/LogiSynapse/shared/logger"
	"github.com/Tanmoy095/LogiSynapse/shared/rabbitmq"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Common.LOG_LEVEL, cfg.Common.LOG_FORMAT)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// closer collects shutdown hooks and runs them in reverse order.
type closer []func()

func (c *closer) add(f func()) { *c = append(*c, f) }

func (c *closer) run() {
	for i := len(*c) - 1; i >= 0; i-- {
		(*c)[i]()
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	var cleanup closer
	defer cleanup.run()

	// 1. Chain providers. Every endpoint must be on the configured chain.
	rpc, err := evmrpc.Dial(ctx, cfg.Chain.RPCEndpoints, log)
	if err != nil {
		return err
	}
	cleanup.add(rpc.Close)

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	if chainID.Int64() != cfg.Chain.ChainID {
		return fmt.Errorf("providers report chain %s, configured %d", chainID, cfg.Chain.ChainID)
	}

	// 2. Signing oracle and the transaction pipeline on top of it.
	signingOracle, err := newOracle(cfg)
	if err != nil {
		return err
	}
	if cfg.Oracle.URL == "" {
		log.Warn("using the in-process development signer; do not run this in production")
	}
	txCfg, err := cfg.TxSignerConfig()
	if err != nil {
		return err
	}
	signer := txsigner.New(signingOracle, rpc, rpc, txCfg, log)
	self, err := signer.Address(ctx)
	if err != nil {
		return fmt.Errorf("resolve controlled address: %w", err)
	}
	log.WithFields(logrus.Fields{"address": self.Hex(), "chain_id": chainID}).Info("signer ready")

	// 3. Stores: Postgres when configured, memory otherwise.
	sessionStore, shipmentStore, db, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		cleanup.add(func() { _ = db.Close() })
	}

	// 4. Authentication.
	identities, err := resolver.NewStaticResolver(cfg.Identities)
	if err != nil {
		return err
	}
	var verifierOpts []auth.VerifierOption
	if cfg.Chain.RevocationRegistry != "" {
		rc, err := auth.NewRegistryRevocationChecker(rpc, common.HexToAddress(cfg.Chain.RevocationRegistry))
		if err != nil {
			return err
		}
		verifierOpts = append(verifierOpts, auth.WithRevocationChecker(rc))
	}
	verifier := auth.NewDelegationVerifier(identities, common.HexToAddress(cfg.Auth.TrustedIssuer), log, verifierOpts...)
	sessions := auth.NewSessionService(verifier, sessionStore, cfg.Auth.SessionDuration, time.Now, log)

	// 5. Escrow and the shipment engine.
	coordinator, err := escrow.NewCoordinator(signer, common.HexToAddress(cfg.Chain.EscrowManager), log)
	if err != nil {
		return err
	}
	var shipmentOpts []shipment.Option
	if brokers := cfg.Common.KafkaBrokers(); len(brokers) > 0 && cfg.Common.KAFKA_TOPIC != "" {
		producer := kafka.NewKafkaProducer(brokers, cfg.Common.KAFKA_TOPIC, log)
		cleanup.add(func() { _ = producer.Close() })
		shipmentOpts = append(shipmentOpts, shipment.WithEventPublisher(producer))
	} else {
		log.Info("kafka not configured; shipment events are not published")
	}
	if url := cfg.Common.GetRabbitMQURL(); url != "" {
		client, err := rabbitmq.NewClient(url)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		cleanup.add(func() { _ = client.Close() })
		notifier, err := rabbitmq.NewNotifier(client, cfg.Common.NotificationQueue())
		if err != nil {
			return err
		}
		shipmentOpts = append(shipmentOpts, shipment.WithNotifier(notifier))
	} else {
		log.Info("rabbitmq not configured; notifications are not sent")
	}
	shipments := shipment.NewService(sessions, shipmentStore, coordinator, cfg.Chain.EscrowDuration, log, shipmentOpts...)

	// 6. Servers.
	httpSrv := &http.Server{
		Addr:              cfg.HTTPListen,
		Handler:           handler.New(sessions, shipments, log).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCListen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCListen, err)
	}
	grpcSrv := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("settlement HTTP API listening on %s", cfg.HTTPListen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Infof("settlement gRPC health listening on %s", cfg.GRPCListen)
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return err
	})
	return g.Wait()
}

func newOracle(cfg *config.Config) (chain.ThresholdSigner, error) {
	if cfg.Oracle.URL != "" {
		return oracle.NewHTTPClient(cfg.Oracle.URL, cfg.Oracle.APIKey), nil
	}
	seed := []byte(cfg.Oracle.DevSeed)
	if decoded, err := hexutil.Decode(cfg.Oracle.DevSeed); err == nil {
		seed = decoded
	}
	return oracle.NewLocalSigner(seed)
}

func openStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (repository.SessionStore, repository.ShipmentStore, *sql.DB, error) {
	if !cfg.Common.HasDatabase() {
		log.Warn("no database configured; sessions and shipments are kept in memory")
		return memory.NewSessionStore(), memory.NewShipmentStore(), nil, nil
	}
	db, err := postgres.Open(ctx, cfg.Common.GetDBURL())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	log.Info("connected to postgres")
	return postgres.NewPostgresSessionStore(db), postgres.NewPostgresShipmentStore(db), db, nil
}
