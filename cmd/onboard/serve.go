package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finlayer/onboard/internal/logging"
	"github.com/finlayer/onboard/pkg/adapters/httpapi"
	"github.com/finlayer/onboard/pkg/adapters/memory"
	redisAdapter "github.com/finlayer/onboard/pkg/adapters/redis"
	"github.com/finlayer/onboard/pkg/flow"
	"github.com/finlayer/onboard/pkg/persistence/middleware"
	"github.com/finlayer/onboard/pkg/ports"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wizard HTTP server",
	Long:  `Starts the onboarding engine in server mode, exposing wizard sessions as a JSON API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		redisAddr, _ := cmd.Flags().GetString("redis")
		flowFiles, _ := cmd.Flags().GetStringSlice("flow")
		encryptionKey, _ := cmd.Flags().GetString("encryption-key")

		logger := logging.New(slog.LevelInfo)

		var localMW middleware.Middleware
		if encryptionKey != "" {
			key, err := hex.DecodeString(encryptionKey)
			if err != nil || len(key) != 32 {
				fmt.Println("Error: --encryption-key must be 64 hex characters (a 32-byte AES-256 key)")
				os.Exit(1)
			}
			localMW = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		}
		newLocal := func() ports.LocalStore {
			var local ports.LocalStore = memory.NewLocalStore()
			if localMW != nil {
				local = localMW(local)
			}
			return local
		}

		flows := map[string]*flow.Flow{
			flow.VariantNewBusiness:      flow.NewBusiness(),
			flow.VariantExistingBusiness: flow.ExistingBusiness(),
		}
		for _, path := range flowFiles {
			f, err := flow.LoadFile(path)
			if err != nil {
				fmt.Printf("Error loading flow %s: %v\n", path, err)
				os.Exit(1)
			}
			flows[f.Variant()] = f
		}

		opts := []httpapi.Option{httpapi.WithLogger(logger)}
		if redisAddr != "" {
			remote := redisAdapter.New(redisAddr, "", 0)
			defer remote.Close()
			opts = append(opts, httpapi.WithStoreFactory(func(string) (ports.LocalStore, ports.RemoteStore) {
				return newLocal(), remote
			}))
		} else if localMW != nil {
			opts = append(opts, httpapi.WithStoreFactory(func(string) (ports.LocalStore, ports.RemoteStore) {
				return newLocal(), nil
			}))
		}

		server := httpapi.NewServer(flows, opts...)
		srv := &http.Server{
			Addr:    ":" + port,
			Handler: server.Handler(),
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting Onboard Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Onboard Server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("redis", "", "Redis address for the remote persistence tier (optional)")
	serveCmd.Flags().StringSlice("flow", nil, "Additional flow definition YAML files")
	serveCmd.Flags().String("encryption-key", "", "Hex-encoded AES-256 key; encrypts session records at rest")
}
