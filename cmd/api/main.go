package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpadp "collateral-loans/internal/adapter/http"
	mw "collateral-loans/internal/adapter/middleware"
	"collateral-loans/internal/adapter/repository/mysql"
	"collateral-loans/internal/config"
	"collateral-loans/internal/domain/event"
	"collateral-loans/internal/domain/oracle"
	"collateral-loans/internal/domain/pool"
	"collateral-loans/internal/infrastructure/cache"
	"collateral-loans/internal/infrastructure/chain"
	"collateral-loans/internal/infrastructure/db"
	"collateral-loans/internal/infrastructure/events"
	"collateral-loans/internal/infrastructure/logging"
	"collateral-loans/internal/infrastructure/metrics"
	"collateral-loans/internal/usecase/consensus"
	"collateral-loans/internal/usecase/loan"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogPretty)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("open mysql")
	}
	if err := db.Migrate(gdb); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer rdb.Close()

	eth, err := chain.Dial(ctx, cfg.EthRPCURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("dial eth rpc")
	}
	defer eth.Close()

	feedAddr := common.HexToAddress(cfg.OracleFeedAddress)
	priceOracle, err := oracle.NewPriceOracle(feedAddr, chain.NewAggregator(feedAddr, eth),
		cfg.OracleResponseDecimals, cfg.CollateralDecimals)
	if err != nil {
		logger.Fatal().Err(err).Msg("price oracle")
	}

	var token pool.LendingToken = pool.StaticToken(cfg.LendingTokenDecimals)
	if cfg.LendingTokenAddress != "" {
		token = chain.NewToken(common.HexToAddress(cfg.LendingTokenAddress), eth)
	}

	validator, err := consensus.NewValidator(consensus.Config{
		Address:             common.HexToAddress(cfg.ConsensusAddress),
		Signers:             cfg.Signers(),
		RequiredSubmissions: cfg.ConsensusRequired,
		ToleranceBps:        cfg.ConsensusToleranceBps,
		ResponseExpiry:      cfg.ResponseExpiry(),
		ChainID:             cfg.ChainID,
	}, time.Now)
	if err != nil {
		logger.Fatal().Err(err).Msg("consensus validator")
	}

	publisher, closePublisher := newPublisher(cfg, rdb, logger)
	defer closePublisher()

	m := metrics.Default()
	engine, err := loan.NewEngine(ctx, mysql.NewGormUoW(gdb), validator, priceOracle, token,
		loan.WithStaleness(cfg.PriceStaleness()),
		loan.WithPublisher(publisher),
		loan.WithMetrics(m),
		loan.WithLogger(logger.With().Str("module", "loan_engine").Logger()),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("loan engine")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Recover(), mw.RequestLogger(logger, m))

	// routes
	httpadp.RegisterRoutes(e, httpadp.Routes{
		Health:   httpadp.NewHandler(),
		Loans:    httpadp.NewLoanHandler(engine),
		Oracle:   httpadp.NewOracleHandler(priceOracle),
		Metrics:  promhttp.Handler(),
		Mutating: []echo.MiddlewareFunc{mw.IdempotencyMiddleware(rdb, cfg.IdempotencyTTL())},
	})

	addr := ":" + cfg.AppPort
	go func() {
		logger.Info().Str("addr", addr).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	logger.Info().Msg("stopped")
}

func newPublisher(cfg *config.Config, rdb *redis.Client, logger zerolog.Logger) (event.Publisher, func()) {
	switch cfg.EventsSink {
	case config.SinkRedis:
		return events.NewRedisPublisher(rdb, cfg.EventsChannel), func() {}
	case config.SinkKafka:
		p := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warn().Err(err).Msg("kafka writer close")
			}
		}
	default:
		return events.NewLogPublisher(logger), func() {}
	}
}
