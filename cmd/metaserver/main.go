// Command metaserver runs Agora's path-directory service: it indexes
// live publishers in a tree, confirms and prunes them, and answers the
// length-prefixed JSON RPC surface described in the metaserver package.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/metaserver"
	"github.com/nlyu1/agora/internal/ping"
	"github.com/nlyu1/agora/pkg/admin"
	"github.com/nlyu1/agora/pkg/flags"
)

func main() {
	port := flag.Uint("port", 8000, "metaserver TCP port")
	metricsAddr := flag.String("metrics-addr", ":9990", "address to serve scrapable metrics on")
	enablePprof := flag.Bool("enable-pprof", false, "enable pprof endpoints on the admin server")

	flags.ConfigureAndParse()

	metaserver.MustRegisterMetrics(prometheus.DefaultRegisterer)

	dial := func(path string, conn connhandle.ConnectionHandle) (metaserver.Pinger, error) {
		return ping.NewClient(conn.WSURL("/ping/" + path))
	}
	state := metaserver.NewState(dial, log.WithField("component", "metaserver"))

	ready := func() (bool, string) {
		return true, fmt.Sprintf("metaserver ready: %d confirmed publishers", state.ConfirmedPublisherCount())
	}
	adminServer := admin.NewServer(*metricsAddr, *enablePprof, ready)
	go func() {
		log.Infof("starting admin server on %s", *metricsAddr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("admin server error (%s): %s", *metricsAddr, err)
		}
	}()

	srv, err := metaserver.Listen(uint16(*port), state, log.WithField("component", "metaserver"))
	if err != nil {
		log.Fatalf("failed to listen on port %d: %s", *port, err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		log.Infof("metaserver listening on port %d", *port)
		if err := srv.Serve(ctx); err != nil {
			log.Errorf("metaserver accept loop stopped: %s", err)
		}
	}()

	<-stop
	log.Info("shutting down metaserver")
	cancel()
	srv.Close()
	adminServer.Shutdown(context.Background())
}
