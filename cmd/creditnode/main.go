// Package main is the creditnode daemon entry point: a single process
// wiring storage, the Router, the index client, and the Application
// command/event channel together, the way lnd.go's lndMain wires
// channeldb, the wallet, and the server together minus everything here
// that is chain/wallet-specific, which this module has none of.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/offsetnet/creditrouter/appif"
	"github.com/offsetnet/creditrouter/internal/amount"
	"github.com/offsetnet/creditrouter/internal/indexclient"
	"github.com/offsetnet/creditrouter/internal/mc"
	"github.com/offsetnet/creditrouter/internal/router"
	"github.com/offsetnet/creditrouter/internal/sig"
	"github.com/offsetnet/creditrouter/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := creditnodeMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// creditnodeMain is lndMain's counterpart: everything lives in one function
// so every defer (log flush, db close, rotator shutdown) runs before the
// process exits, mirroring lnd.go's own reason for the main/lndMain split.
func creditnodeMain() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := initLogRotator(cfg.logFilePath(), cfg.MaxLogFileSize, cfg.MaxLogFiles); err != nil {
		return fmt.Errorf("initializing log rotator: %w", err)
	}
	setLogLevels(cfg.DebugLevel)
	defer ltndLog.Info("shutdown complete")

	ltndLog.Infof("starting creditnode, datadir=%s", cfg.DataDir)

	signer, err := loadOrCreateIdentity(cfg.identityFilePath())
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}
	nodePk := signer.PublicKey()
	ltndLog.Infof("node identity: %s", nodePk)

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening mutation log: %w", err)
	}
	defer db.Close()

	// ReplayAll is consulted at startup purely to verify the persisted
	// log decodes cleanly and to report its size; live friend state is
	// rebuilt through AddFriend/OpenFriendCurrency commands replayed by
	// the application layer, since Router's public API only constructs
	// friends fresh (HandleAddFriend), not from a pre-built MutualCredit.
	replayed, err := db.ReplayAll(func(_ sig.PublicKey, currency string) *mc.MutualCredit {
		return mc.New(currency, amount.U128{}, amount.U128{})
	})
	if err != nil {
		return fmt.Errorf("replaying mutation log: %w", err)
	}
	ltndLog.Infof("replayed state for %d friends from mutation log", len(replayed))

	metrics := router.NewMetrics(prometheus.DefaultRegisterer)

	var idxNotifier router.IndexNotifier = noopIndexNotifier{}
	var idxc *indexclient.Client
	if cfg.IndexServer != "" {
		conn, err := indexclient.Dial(cfg.IndexServer)
		if err != nil {
			return fmt.Errorf("dialing index server %s: %w", cfg.IndexServer, err)
		}
		defer conn.Close()

		idxc, err = indexclient.New(nodePk, signer, conn)
		if err != nil {
			return fmt.Errorf("constructing index client: %w", err)
		}
		idxNotifier = idxc
	}

	r := router.New(router.Config{
		LocalPk:     nodePk,
		Signer:      signer,
		Storage:     db,
		IndexClient: idxNotifier,
		App:         noopAppNotifier{},
		Metrics:     metrics,
	})

	app := appif.New(appif.Permissions{Routes: true, Buyer: true, Seller: true, Config: true}, r, signer, nodePk)
	r.SetApp(app)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if idxc != nil {
		go idxc.Run(ctx, indexclient.DefaultFlushInterval)
	}

	app.SendNodeReport(nil)
	ltndLog.Info("creditnode ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ltndLog.Info("received shutdown signal")
	return nil
}

// noopIndexNotifier satisfies router.Config.IndexClient when no index
// server address is configured.
type noopIndexNotifier struct{}

func (noopIndexNotifier) UpdateFriend(sig.PublicKey, string, amount.U128, amount.U128, mc.Rate) {}
func (noopIndexNotifier) RemoveFriend(sig.PublicKey, string)                                    {}

// noopAppNotifier satisfies router.Config.App for the moment between
// router.New and r.SetApp(app): appif.New needs the *Router to already
// exist, so the real App is only wired in immediately after construction.
type noopAppNotifier struct{}

func (noopAppNotifier) DeliverRequest(string, mc.RequestOp)    {}
func (noopAppNotifier) DeliverResponse(sig.Uid, mc.ResponseOp) {}
func (noopAppNotifier) DeliverCancel(sig.Uid)                  {}
func (noopAppNotifier) ChannelInconsistent(sig.PublicKey)      {}
