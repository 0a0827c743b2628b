package main

import (
	"context"
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/params"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/api"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/core/trader"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/app/venue"
	vcrypto "github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/crypto"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/fhe"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/p2p"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/storage"
	"github.com/LeraWindler/Private-Forex-Trading-Platform-sub001/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Operator identity ----
	var operator *vcrypto.Signer
	if cfg.Venue.OperatorKey != "" {
		operator, err = vcrypto.FromPrivateKeyHex(cfg.Venue.OperatorKey)
		if err != nil {
			sugar.Fatalw("operator_key_invalid", "err", err)
		}
	} else {
		operator, err = vcrypto.GenerateKey()
		if err != nil {
			sugar.Fatalw("operator_keygen_failed", "err", err)
		}
		sugar.Warnw("ephemeral_operator_key",
			"address", operator.Address().Hex(),
			"key", operator.PrivateKeyHex())
	}

	// ---- Homomorphic engine (dev) ----
	var engine *fhe.SealBox
	if k := os.Getenv("SEAL_KEY"); k != "" {
		key, err := hex.DecodeString(k)
		if err != nil {
			sugar.Fatalw("seal_key_invalid", "err", err)
		}
		engine, err = fhe.NewSealBox(key)
		if err != nil {
			sugar.Fatalw("sealbox_init_failed", "err", err)
		}
	} else {
		engine, err = fhe.NewSealBoxRandom()
		if err != nil {
			sugar.Fatalw("sealbox_init_failed", "err", err)
		}
		sugar.Warn("ephemeral sealing key: sealed client submissions will not verify")
	}

	// ---- Persistence ----
	var wal storage.WAL = storage.NewNopWAL()
	if cfg.Node.WALPath != "" {
		os.MkdirAll(filepath.Dir(cfg.Node.WALPath), 0o755)
		fw, err := storage.NewFileWAL(cfg.Node.WALPath)
		if err != nil {
			sugar.Fatalw("wal_open_failed", "path", cfg.Node.WALPath, "err", err)
		}
		wal = fw
	}
	var audit *storage.AuditStore
	var traderStore *trader.Store
	if cfg.Node.DBPath != "" {
		audit, err = storage.NewAuditStore(filepath.Join(cfg.Node.DBPath, "audit"))
		if err != nil {
			sugar.Fatalw("audit_store_open_failed", "err", err)
		}
		defer audit.Close()
		traderStore, err = trader.NewStore(filepath.Join(cfg.Node.DBPath, "traders"))
		if err != nil {
			sugar.Fatalw("trader_store_open_failed", "err", err)
		}
		defer traderStore.Close()
	}

	// Attestation key derived from the operator key; replicas configure
	// their own seeds.
	attestor := vcrypto.NewAttestorFromSeed(ethcrypto.Keccak256([]byte(operator.PrivateKeyHex())))

	app := venue.New(venue.Options{
		Cfg:      cfg.Venue,
		Engine:   engine,
		Operator: operator.Address(),
		WAL:      wal,
		Audit:    audit,
		Attestor: attestor,
		Traders:  traderStore,
		Logger:   sugar,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Event gossip (optional) ----
	var net *p2p.EventNet
	if cfg.Node.Listen != "" {
		net, err = p2p.NewEventNet(ctx, p2p.Config{
			ListenAddr: cfg.Node.Listen,
			Bootstrap:  cfg.Node.Bootstrap,
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("p2p_init_failed", "err", err)
		}
		defer net.Close()
		net.OnRemoteEvent = func(e venue.Event) {
			sugar.Infow("remote_event", "kind", e.Kind, "session", e.Session)
		}
	}

	// ---- API server ----
	apiServer := api.NewServer(app, cfg.Venue.Instruments, nil, sugar)

	app.OnEvent = func(e venue.Event) {
		apiServer.PublishEvent(e)
		if net != nil {
			if err := net.PublishEvent(ctx, e); err != nil {
				sugar.Warnw("event_gossip_failed", "kind", e.Kind, "err", err)
			}
		}
	}
	app.OnSettled = func(sessionID uint32, digest, attestation []byte) {
		if net == nil {
			return
		}
		err := net.PublishSettlement(ctx, p2p.SettlementWire{
			SessionID:   sessionID,
			Digest:      digest,
			Attestation: attestation,
		})
		if err != nil {
			sugar.Warnw("settlement_gossip_failed", "session", sessionID, "err", err)
		}
	}

	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("venue_ready",
		"operator", operator.Address().Hex(),
		"instruments", cfg.Venue.Instruments,
		"session_duration", cfg.Venue.SessionDuration.String(),
		"api", cfg.Node.APIAddr)

	<-ctx.Done()
	sugar.Info("shutting down")
}
