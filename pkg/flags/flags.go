// Package flags adds the command-line flags common to every Agora
// binary: log level and a --version switch.
package flags

import (
	"flag"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// Version is set at build time via -ldflags; defaults to "dev" for
// local builds.
var Version = "dev"

// ConfigureAndParse adds flags common to every Agora process and calls
// flag.Parse(); call after all other flags have been registered.
func ConfigureAndParse() {
	logLevel := flag.String("log-level", log.InfoLevel.String(),
		"log level, must be one of: panic, fatal, error, warn, info, debug")
	printVersion := flag.Bool("version", false, "print version and exit")

	flag.Parse()

	setLogLevel(*logLevel)
	maybePrintVersionAndExit(*printVersion)
}

func setLogLevel(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.Fatalf("invalid log-level: %s", logLevel)
	}
	log.SetLevel(level)
}

func maybePrintVersionAndExit(printVersion bool) {
	if printVersion {
		fmt.Println(Version)
		os.Exit(0)
	}
	log.Infof("running version %s", Version)
}
