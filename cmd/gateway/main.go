// Command gateway runs Agora's TCP/WebSocket front door: it maps
// /{kind}/{agora_path} requests to the matching local Unix-domain
// socket endpoint and relays frames transparently in both directions.
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

	log "github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/gateway"
	"github.com/nlyu1/agora/pkg/admin"
	"github.com/nlyu1/agora/pkg/flags"
)

func main() {
	port := flag.Uint("port", 8001, "gateway TCP port")
	metricsAddr := flag.String("metrics-addr", ":9991", "address to serve scrapable metrics on")
	enablePprof := flag.Bool("enable-pprof", false, "enable pprof endpoints on the admin server")

	flags.ConfigureAndParse()

	gw, err := gateway.New(uint16(*port), log.WithField("component", "gateway"))
	if err != nil {
		log.Fatalf("failed to bind gateway on port %d: %s", *port, err)
	}

	ready := func() (bool, string) {
		return true, fmt.Sprintf("gateway ready, relaying on port %d", *port)
	}
	adminServer := admin.NewServer(*metricsAddr, *enablePprof, ready)
	go func() {
		log.Infof("starting admin server on %s", *metricsAddr)
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("admin server error (%s): %s", *metricsAddr, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	log.Infof("gateway listening on port %d", *port)
	<-stop

	log.Info("shutting down gateway")
	gw.Close()
	adminServer.Shutdown(context.Background())
}
