package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ValentinKolb/scired/lib/dispatch"
	"github.com/ValentinKolb/scired/lib/store"
	"github.com/ValentinKolb/scired/lib/store/cstore"
	"github.com/ValentinKolb/scired/lib/store/lstore"
	"github.com/ValentinKolb/scired/rpc/common"
	"github.com/ValentinKolb/scired/rpc/transport/tcp"
)

const adminShutdownTimeout = 5 * time.Second

// Run initializes the loggers, connects to the store, declares the statements and
// serves until ctx is canceled. Store and declaration failures are returned before
// any connection is accepted.
func Run(ctx context.Context, config common.ServerConfig) error {
	if err := common.InitLoggers(config); err != nil {
		return err
	}

	Logger.Infof("Starting scired server")
	Logger.Infof("%s", config.String())

	session, err := OpenSession(config)
	if err != nil {
		return err
	}
	defer session.Close()

	return runWithSession(ctx, config, session)
}

// runWithSession declares the statements on session and serves until ctx is canceled.
// The endpoint is only bound once the declaration succeeded.
func runWithSession(ctx context.Context, config common.ServerConfig, session store.ISession) error {
	dispatcher, err := dispatch.NewDispatcher(ctx, session, config.Schema(), config.ConsistencyPolicy())
	if err != nil {
		return err
	}

	listener, err := tcp.Listen(config)
	if err != nil {
		return err
	}

	s := NewServer(config, dispatcher)

	if config.AdminEndpoint != "" {
		admin := &http.Server{
			Addr:              config.AdminEndpoint,
			Handler:           NewAdminHandler(s),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			Logger.Infof("admin endpoint listening on %s", config.AdminEndpoint)
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				Logger.Errorf("admin endpoint failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
	}

	return s.Serve(ctx, listener)
}

// OpenSession creates the store session selected by the configuration
func OpenSession(config common.ServerConfig) (store.ISession, error) {
	switch config.StoreType {
	case common.StoreTypeMemory:
		Logger.Warningf("using in-memory store, data is lost on exit")
		return lstore.NewLocalSession(config.Schema().String()), nil
	default:
		return cstore.NewClusterSession(cstore.Config{
			Hosts:          config.StoreHosts,
			ConnectTimeout: config.ConnectTimeout,
			Timeout:        config.StoreTimeout,
		})
	}
}
