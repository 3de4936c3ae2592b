package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"duncan/internal/account"
	"duncan/internal/alerts"
	"duncan/internal/config"
	"duncan/internal/hedge"
	"duncan/internal/hl/exchange"
	"duncan/internal/hl/rest"
	"duncan/internal/hl/ws"
	"duncan/internal/hyperliquid"
	"duncan/internal/journal"
	"duncan/internal/market"
	"duncan/internal/metrics"
	"duncan/internal/scheduler"
	"duncan/internal/server"
	"duncan/internal/state/sqlite"
	"duncan/internal/vault"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Network bundles everything bound to one Hyperliquid network.
type Network struct {
	Name     string
	Testnet  bool
	Market   *market.MarketData
	Exchange *hyperliquid.Exchange
	Manager  *hedge.Manager
}

type App struct {
	cfg   *config.Config
	creds config.Credentials
	log   *zap.Logger

	store   *sqlite.Store
	prom    *metrics.Prometheus
	metrics *metrics.Metrics
	journal *journal.Journal
	alerts  *alerts.Telegram

	mainnet *Network
	testnet *Network

	chain  *vault.Chain
	syncer *vault.Syncer
}

// New builds both network facades up front. Vault syncing is only wired when
// an Arbitrum RPC endpoint is configured.
func New(ctx context.Context, cfg *config.Config, creds config.Credentials, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := creds.RequireSigner(); err != nil {
		return nil, err
	}
	creds.ApplyTo(cfg)
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, creds: creds, log: log, store: store, metrics: metrics.NewNoop()}
	if cfg.Metrics.EnabledValue() {
		a.prom = metrics.NewPrometheus()
		a.metrics = a.prom.Metrics
	}
	a.alerts = alerts.NewTelegram(cfg.Telegram, log)

	if a.mainnet, err = a.buildNetwork(ctx, false); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.testnet, err = a.buildNetwork(ctx, true); err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.journal, err = a.openJournal(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	if creds.RequireVault() == nil {
		chain, err := vault.Dial(ctx, creds.ArbitrumRPCURL, creds.VaultPrivateKey, cfg.Vault.ChainID)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.chain = chain
		a.syncer = vault.NewSyncer(chain, a.mainnet.Exchange, log, a.metrics)
	}
	return a, nil
}

func (a *App) buildNetwork(ctx context.Context, testnet bool) (*Network, error) {
	name := "mainnet"
	if testnet {
		name = "testnet"
	}
	netCfg := a.cfg.Network(testnet)
	log := a.log.With(zap.String("network", name))

	signer, err := exchange.NewSigner(a.creds.PrivateKey, !testnet)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(a.creds.WalletAddress, signer.Address().Hex()) {
		return nil, fmt.Errorf("%w: HL_WALLET_ADDRESS %s does not match HL_PRIVATE_KEY address %s",
			config.ErrMissingCredential, a.creds.WalletAddress, signer.Address().Hex())
	}
	exClient, err := exchange.NewClient(exchange.ClientConfig{
		BaseURL:      netCfg.RESTURL,
		Timeout:      netCfg.Timeout,
		VaultAddress: a.creds.VaultAddress,
		Log:          log,
	}, signer)
	if err != nil {
		return nil, err
	}
	if err := exClient.UseNonceStore(ctx, a.store); err != nil {
		return nil, err
	}

	restClient := rest.New(netCfg.RESTURL, netCfg.Timeout, a.cfg.REST.Retries, log)
	wsClient := ws.New(netCfg.WSURL, a.cfg.WS.ReconnectDelay, a.cfg.WS.PingInterval, log)
	md := market.New(restClient, wsClient, log)
	md.SetRefreshWindow(a.cfg.Market.RefreshWindow)
	acct := account.New(restClient, log, exClient.Address(), a.cfg.Rebalance.QuoteAsset)
	facade := hyperliquid.New(md, acct, exClient, hyperliquid.Options{
		Network:      name,
		SellSlippage: a.cfg.Rebalance.SellSlippage,
		BuySlippage:  a.cfg.Rebalance.BuySlippage,
	}, log)
	manager := hedge.NewManager(facade, hedge.NewPlanner(a.cfg.Rebalance.MinTradeNotional), log, a.metrics)
	return &Network{Name: name, Testnet: testnet, Market: md, Exchange: facade, Manager: manager}, nil
}

func (a *App) openJournal(ctx context.Context) (*journal.Journal, error) {
	cfg := a.cfg.Journal
	if !cfg.Enabled {
		return nil, nil
	}
	if strings.EqualFold(cfg.Driver, journal.DriverSQLite) && cfg.DSN == a.cfg.State.SQLitePath {
		return journal.New(ctx, a.store.DB(), journal.DriverSQLite, a.log)
	}
	return journal.Open(ctx, cfg, a.log)
}

func (a *App) Network(testnet bool) *Network {
	if testnet {
		return a.testnet
	}
	return a.mainnet
}

func (a *App) Manager(testnet bool) *hedge.Manager {
	return a.Network(testnet).Manager
}

// Rebalance runs one rebalance and journals the outcome.
func (a *App) Rebalance(ctx context.Context, testnet bool, symbol string) (hedge.Report, error) {
	network := a.Network(testnet)
	report, err := network.Manager.Rebalance(ctx, symbol)
	var payload any
	if err == nil {
		payload = report
	}
	if recErr := a.journal.Record(ctx, journal.NewEntry(journal.KindRebalance, network.Name, symbol, payload, err)); recErr != nil {
		a.log.Warn("journal record failed", zap.Error(recErr))
	}
	return report, err
}

func (a *App) SyncVault(ctx context.Context, address string, simulate bool) (vault.SyncResult, error) {
	if a.syncer == nil {
		return vault.SyncResult{}, a.creds.RequireVault()
	}
	result, err := a.syncer.Sync(ctx, address, simulate)
	if !simulate {
		var payload any
		if err == nil {
			payload = result
		}
		if recErr := a.journal.Record(ctx, journal.NewEntry(journal.KindVaultSync, a.mainnet.Name, address, payload, err)); recErr != nil {
			a.log.Warn("journal record failed", zap.Error(recErr))
		}
	}
	return result, err
}

// Serve runs the HTTP server, scheduled jobs and mark price streams until
// ctx is done.
func (a *App) Serve(ctx context.Context) error {
	if err := a.creds.RequireAPIKey(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the writer outlives ctx so entries from jobs finishing after a
	// shutdown signal are still flushed
	journalCtx, stopJournal := context.WithCancel(context.WithoutCancel(ctx))
	defer stopJournal()
	a.journal.Start(journalCtx)

	rebalanceNet := a.Network(a.cfg.Scheduler.RebalanceTestnet)
	if err := rebalanceNet.Market.Watch(ctx, a.cfg.Scheduler.WatchAssets); err != nil {
		return err
	}

	sched := scheduler.New(a.log)
	if err := a.registerJobs(sched, rebalanceNet); err != nil {
		return err
	}
	sched.Start(ctx)

	var metricsHandler http.Handler
	if a.prom != nil {
		metricsHandler = a.prom.Handler()
	}
	srvCfg := server.Config{
		Addr:         a.cfg.Server.Addr,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		APIKey:       a.creds.APIKey,
		Mainnet:      a.mainnet.Manager,
		Testnet:      a.testnet.Manager,
		Metrics:      metricsHandler,
		Log:          a.log,
	}
	if a.syncer != nil {
		srvCfg.Vault = a.syncer
	}
	if a.journal != nil {
		srvCfg.Journal = a.journal
	}
	srv := server.New(srvCfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	// in-flight jobs finish and enqueue before the journal drains
	sched.Stop()
	cancel()
	stopJournal()
	a.journal.Wait()
	return runErr
}

func (a *App) registerJobs(sched *scheduler.Scheduler, network *Network) error {
	var recorder scheduler.Recorder
	if a.journal != nil {
		recorder = a.journal
	}
	if a.cfg.Scheduler.RebalanceSchedule != "" {
		for _, symbol := range a.cfg.Scheduler.RebalanceSymbols {
			job := &scheduler.RebalanceJob{
				Network:  network.Name,
				Symbol:   symbol,
				Manager:  network.Manager,
				Journal:  recorder,
				Notifier: a.alerts,
			}
			if err := sched.AddJob(a.cfg.Scheduler.RebalanceSchedule, job); err != nil {
				return fmt.Errorf("schedule %s: %w", job.Name(), err)
			}
		}
	}
	if len(a.cfg.Vault.Addresses) == 0 {
		return nil
	}
	if a.syncer == nil {
		return errors.Join(errors.New("vault.addresses set without a vault connection"), a.creds.RequireVault())
	}
	for _, address := range a.cfg.Vault.Addresses {
		job := &scheduler.VaultSyncJob{
			Address:  address,
			Syncer:   a.syncer,
			Journal:  recorder,
			Notifier: a.alerts,
		}
		if err := sched.AddJob(a.cfg.Vault.SyncSchedule, job); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
	}
	return nil
}

func (a *App) Close() error {
	if a.chain != nil {
		a.chain.Close()
	}
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
