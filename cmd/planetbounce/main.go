// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
	"github.com/luxfi/planetbounce/config"
	"github.com/luxfi/planetbounce/contract"
	"github.com/luxfi/planetbounce/coprocessor"
	"github.com/luxfi/planetbounce/fheclient"
	"github.com/luxfi/planetbounce/relayer"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "planetbounce",
	Short: "Encrypted-guess game node",
	Long: `planetbounce runs the encrypted-guess protocol stack: the relayer
bridge with its dev threshold-decryption service, and a local
play flow for exercising the full encrypt-submit-decrypt round.`,
	Version: fmt.Sprintf("%s (built %s)", version, buildDate),
}

func init() {
	serveCmd.Flags().AddFlagSet(config.BuildFlagSet())
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("option", "Mars", "Planet to guess")
	playCmd.Flags().Uint64("games", 1, "Number of rounds to play")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relayer bridge and dev decryption service",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.BuildViper(cmd.Flags())
		if err != nil {
			return err
		}
		cfg, err := config.NewConfig(v)
		if err != nil {
			return err
		}

		log, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())

		mux := http.NewServeMux()

		upstream := cfg.UpstreamURL
		if upstream == "" {
			// No upstream configured: mount the dev service on this
			// node and point the bridge back at it.
			cop, err := coprocessor.New(log, cfg.ChainID, cfg.Contract())
			if err != nil {
				return err
			}
			relayer.NewServer(log, cop).RegisterRoutes(mux)
			upstream = fmt.Sprintf("http://127.0.0.1:%d", cfg.APIPort)
			log.Info("serving in-process dev decryption service")
		}

		bridge, err := relayer.NewBridge(log, upstream, relayer.NewBridgeMetrics(registry))
		if err != nil {
			return err
		}
		mux.Handle(relayer.BridgePathPrefix, bridge)

		go func() {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			log.Info("metrics listening", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, metricsMux); err != nil {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()

		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info("api listening",
			zap.String("addr", addr),
			zap.String("upstream", upstream),
		)
		return http.ListenAndServe(addr, mux)
	},
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play full encrypted rounds against an in-process stack",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("option")
		games, _ := cmd.Flags().GetUint64("games")
		option, err := planetbounce.ParsePlanet(name)
		if err != nil {
			return err
		}

		log := zap.NewNop()
		contractAddr := common.HexToAddress("0x00000000000000000000000000000000c0ffee01")
		cop, err := coprocessor.New(log, 1337, contractAddr)
		if err != nil {
			return err
		}
		ledger := contract.New(log, contractAddr, cop, nil)

		mux := http.NewServeMux()
		relayer.NewServer(log, cop).RegisterRoutes(mux)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return err
		}
		defer ln.Close()
		go func() { _ = http.Serve(ln, mux) }()

		rc := relayer.NewClient(log, "http://"+ln.Addr().String())
		engine := fheclient.NewEngine(log, rc)
		client := fheclient.NewClient(log, engine, rc)

		ctx := context.Background()
		if err := engine.Init(ctx); err != nil {
			return err
		}

		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		signer := fheclient.NewLocalSigner(key)
		player := signer.Address()

		for i := uint64(0); i < games; i++ {
			input, err := client.BuildEncryptedGuess(ctx, contractAddr, player, option)
			if err != nil {
				return err
			}
			if err := ledger.Play(player, input); err != nil {
				return err
			}
			handle, err := ledger.GetResultHandle(player)
			if err != nil {
				return err
			}
			matched, err := client.DecryptResult(ctx, handle, contractAddr, signer)
			if err != nil {
				return err
			}
			fmt.Printf("game %d: guessed %s, match=%v\n", i+1, option, matched)
		}
		fmt.Printf("player %s: played=%s wins=%s\n",
			player.Hex(),
			ledger.GamesPlayed(player),
			ledger.Wins(player),
		)
		return nil
	},
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
