// Command engine runs the trading engine's cycle loop and its independent
// persistence-verification timer, adapted from the teacher's root main.go
// bootstrap-then-signal-wait shape.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buzzkillb/tirade-engine/config"
	"github.com/buzzkillb/tirade-engine/internal/circuit"
	"github.com/buzzkillb/tirade-engine/internal/domain"
	"github.com/buzzkillb/tirade-engine/internal/engine"
	"github.com/buzzkillb/tirade-engine/internal/exchange"
	"github.com/buzzkillb/tirade-engine/internal/indicators"
	"github.com/buzzkillb/tirade-engine/internal/logging"
	"github.com/buzzkillb/tirade-engine/internal/mlenhancer"
	"github.com/buzzkillb/tirade-engine/internal/neural"
	"github.com/buzzkillb/tirade-engine/internal/persistence"
	"github.com/buzzkillb/tirade-engine/internal/risk"
	"github.com/buzzkillb/tirade-engine/internal/statusapi"
	"github.com/buzzkillb/tirade-engine/internal/store"
	"github.com/buzzkillb/tirade-engine/internal/strategy"
	"github.com/buzzkillb/tirade-engine/internal/vault"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     "stdout",
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "engine",
	})
	logging.SetDefault(logger)
	logger.Info("configuration loaded", "pair", cfg.TradingConfig.Pair, "wallets", len(cfg.TradingConfig.WalletKeys))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := store.New(ctx, store.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to store: %v", err)
	}

	vaultClient, err := vault.NewClient(vault.Config{
		Enabled:    cfg.VaultConfig.Enabled,
		Address:    cfg.VaultConfig.Address,
		Token:      cfg.VaultConfig.Token,
		MountPath:  cfg.VaultConfig.MountPath,
		SecretPath: cfg.VaultConfig.SecretPath,
		TLSEnabled: cfg.VaultConfig.TLSEnabled,
		CACert:     cfg.VaultConfig.CACert,
	})
	if err != nil {
		log.Fatalf("failed to initialize vault client: %v", err)
	}

	wallets, err := buildWallets(context.Background(), cfg, vaultClient, db, logger)
	if err != nil {
		log.Fatalf("failed to configure wallets: %v", err)
	}

	priceSource := buildPriceSource(cfg, logger)

	venueCfg := exchange.Config{
		BaseURL:            cfg.ExchangeConfig.BaseURL,
		APIKey:             cfg.ExchangeConfig.APIKey,
		EnableExecution:    cfg.TradingConfig.EnableExecution,
		SlippageTolerance:  cfg.ExchangeConfig.SlippageTolerance,
		VerifyAttempts:     cfg.ExchangeConfig.VerifyAttempts,
		VerifyIntervalSecs: cfg.ExchangeConfig.VerifyIntervalSecs,
		BaseTolerance:      cfg.ExchangeConfig.BaseTolerance,
		QuoteTolerance:     cfg.ExchangeConfig.QuoteTolerance,
	}
	venue := exchange.NewVenueClient(venueCfg)

	riskMgr := risk.New(risk.Config{
		PositionSizePercentage: cfg.RiskConfig.PositionSizePercentage,
		MaxDailyDrawdownPct:    cfg.RiskConfig.MaxDailyDrawdownPct,
		MaxOpenPositions:       cfg.RiskConfig.MaxOpenPositions,
	})

	var breaker *circuit.Breaker
	if cfg.CircuitBreakerConfig.Enabled {
		breaker = circuit.New(circuit.Config{
			Enabled:              cfg.CircuitBreakerConfig.Enabled,
			MaxLossPerHour:       cfg.CircuitBreakerConfig.MaxLossPerHour,
			MaxConsecutiveLosses: cfg.CircuitBreakerConfig.MaxConsecutiveLosses,
			CooldownMinutes:      cfg.CircuitBreakerConfig.CooldownMinutes,
			MaxDailyLoss:         cfg.CircuitBreakerConfig.MaxDailyLoss,
			MaxDailyTrades:       cfg.CircuitBreakerConfig.MaxDailyTrades,
		})
	}

	var trailing *risk.TrailingStopTracker
	if cfg.RiskConfig.TrailingStopEnabled {
		trailing = risk.NewTrailingStopTracker(risk.TrailingStopConfig{
			Enabled:           cfg.RiskConfig.TrailingStopEnabled,
			TrailingPercent:   cfg.RiskConfig.TrailingStopPercent,
			ActivationPercent: cfg.RiskConfig.TrailingStopActivation,
		})
	}

	deps := engine.Deps{
		Prices:  priceSource,
		Store:   db,
		Swap:    venue,
		Wallets: wallets,

		Indicators: indicators.New(indicators.Config{
			RSIFastPeriod:    cfg.IndicatorConfig.RSIFastPeriod,
			RSISlowPeriod:    cfg.IndicatorConfig.RSISlowPeriod,
			SMAShortPeriod:   cfg.IndicatorConfig.SMAShortPeriod,
			SMALongPeriod:    cfg.IndicatorConfig.SMALongPeriod,
			VolatilityWindow: cfg.IndicatorConfig.VolatilityWindow,
		}),
		Strategy: strategy.New(strategy.Config{PriceChangeThreshold: cfg.StrategyConfig.PriceChangeThreshold}),
		Risk:     riskMgr,
		Breaker:  breaker,
		Trailing: trailing,
		Logger:   logger,
	}
	if cfg.MLConfig.MLEnabled {
		deps.ML = mlenhancer.New(mlenhancer.Config{
			Enabled:                true,
			MinConfidenceThreshold: cfg.MLConfig.MinConfidenceThreshold,
			MaxPositionSize:        mlenhancer.DefaultConfig().MaxPositionSize,
		})
	}
	if cfg.MLConfig.NeuralEnabled {
		deps.Neural = neural.New(neural.DefaultConfig())
	}

	persist := persistence.New(persistence.Config{IntervalMinutes: cfg.TradingConfig.BackupIntervalMinutes}, db, cfg.TradingConfig.Pair, logger)

	var statusSrv *statusapi.Server
	if cfg.StatusConfig.Enabled {
		statusSrv = statusapi.NewServer(statusapi.Config{
			Host:      cfg.StatusConfig.Host,
			Port:      cfg.StatusConfig.Port,
			AuthToken: cfg.StatusConfig.AuthToken,
		}, statusapi.Deps{
			Pair:        cfg.TradingConfig.Pair,
			Store:       db,
			Persistence: persist,
		}, zerolog.New(os.Stdout).With().Timestamp().Logger())
		deps.OnSignal = statusSrv.BroadcastSignal
	}

	eng, err := engine.New(engine.Config{
		Pair:            cfg.TradingConfig.Pair,
		CyclePeriodSecs: cfg.TradingConfig.CyclePeriodSecs,
		SlippageBps:     venueCfg.SlippageBps(),
	}, deps)
	if err != nil {
		log.Fatalf("failed to construct engine: %v", err)
	}

	if err := eng.Start(context.Background()); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	persist.Start()

	if statusSrv != nil {
		statusSrv.SetRegistry(eng.Registry())
		go func() {
			if err := statusSrv.Start(); err != nil {
				logger.Warn("status api stopped", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	if statusSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := statusSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error stopping status api", "error", err)
		}
		shutdownCancel()
	}
	persist.Stop()
	if err := eng.Stop(); err != nil {
		logger.Warn("error stopping engine", "error", err)
	}
}

// buildWallets registers each configured wallet address with Store and
// pre-warms its Vault key material cache (when Vault is enabled), so a
// misconfigured wallet fails fast at startup rather than mid-cycle.
func buildWallets(ctx context.Context, cfg *config.Config, vc *vault.Client, db domain.Store, logger *logging.Logger) ([]domain.Wallet, error) {
	if len(cfg.TradingConfig.WalletKeys) == 0 {
		return nil, fmt.Errorf("no wallet_keys configured")
	}

	wallets := make([]domain.Wallet, len(cfg.TradingConfig.WalletKeys))
	for i, address := range cfg.TradingConfig.WalletKeys {
		name := address
		if i < len(cfg.TradingConfig.WalletNames) {
			name = cfg.TradingConfig.WalletNames[i]
		}

		if err := db.CreateWallet(ctx, address); err != nil {
			return nil, fmt.Errorf("register wallet %s: %w", address, err)
		}

		if vc.IsEnabled() {
			if _, err := vc.WalletKey(ctx, address); err != nil {
				return nil, fmt.Errorf("load signing key for wallet %s: %w", address, err)
			}
		}

		wallets[i] = domain.Wallet{ID: fmt.Sprintf("wallet-%d", i), Address: address, Name: name}
		logger.Debug("wallet configured", "index", i, "name", name)
	}
	return wallets, nil
}

// buildPriceSource wraps the venue's price feed with a Redis read-through
// cache when configured, otherwise passes it through unwrapped.
func buildPriceSource(cfg *config.Config, logger *logging.Logger) domain.PriceSource {
	venue := exchange.NewVenueClient(exchange.Config{
		BaseURL:            cfg.ExchangeConfig.BaseURL,
		APIKey:             cfg.ExchangeConfig.APIKey,
		SlippageTolerance:  cfg.ExchangeConfig.SlippageTolerance,
		VerifyAttempts:     cfg.ExchangeConfig.VerifyAttempts,
		VerifyIntervalSecs: cfg.ExchangeConfig.VerifyIntervalSecs,
		BaseTolerance:      cfg.ExchangeConfig.BaseTolerance,
		QuoteTolerance:     cfg.ExchangeConfig.QuoteTolerance,
	})

	if !cfg.RedisConfig.Enabled {
		return venue
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisConfig.Address})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, running without price cache", "error", err)
		return venue
	}
	return exchange.NewCachedPriceSource(venue, rdb)
}
