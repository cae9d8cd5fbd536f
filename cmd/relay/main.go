// Command relay runs Agora's interactive republisher: it creates one
// destination publisher and repeatedly swaps which upstream path feeds
// it, without ever dropping the downstream connection.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/nlyu1/agora/internal/codec"
	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/metaserver"
	"github.com/nlyu1/agora/internal/relay"
	"github.com/nlyu1/agora/pkg/flags"
)

func main() {
	destAddr := flag.String("dest-metaserver", "127.0.0.1", "destination metaserver host")
	destPort := flag.Uint("dest-port", 8000, "destination metaserver TCP port")
	destGatewayPort := flag.Uint("dest-gateway-port", 8001, "destination gateway TCP port")

	flags.ConfigureAndParse()

	destConn := connhandle.New(*destAddr, uint16(*destPort))
	destGateway := connhandle.New(*destAddr, uint16(*destGatewayPort))

	destMeta, err := metaserver.Dial(destConn)
	if err != nil {
		fmt.Printf("failed to connect to destination metaserver at %s: %v\n", destConn, err)
		os.Exit(1)
	}
	defer destMeta.Close()

	scanner := bufio.NewScanner(os.Stdin)
	destPath := prompt(scanner, "Enter destination path (e.g., relay/output): ")
	initial := prompt(scanner, "Enter initial value: ")

	ctx := context.Background()
	r, err := relay.New[string](ctx, destPath, initial, codec.StringCodec{}, destMeta, destGateway, log.WithField("component", "relay"))
	if err != nil {
		fmt.Printf("failed to create relay: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()

	fmt.Printf("relay created at %q, ready for swap operations. Ctrl-D to exit.\n", destPath)

	for {
		fmt.Println()
		fmt.Print("Enter source path (or 'quit' to exit): ")
		if !scanner.Scan() {
			return
		}
		srcPath := strings.TrimSpace(scanner.Text())
		if srcPath == "" {
			continue
		}
		if srcPath == "quit" || srcPath == "exit" {
			return
		}

		srcAddr := prompt(scanner, "Enter source metaserver host (press Enter to reuse destination host): ")
		if srcAddr == "" {
			srcAddr = *destAddr
		}
		srcPortStr := prompt(scanner, fmt.Sprintf("Enter source metaserver port (default: %d): ", *destPort))
		srcPort := *destPort
		if srcPortStr != "" {
			fmt.Sscanf(srcPortStr, "%d", &srcPort)
		}

		srcConn := connhandle.New(srcAddr, uint16(srcPort))
		srcMeta, err := metaserver.Dial(srcConn)
		if err != nil {
			fmt.Printf("failed to connect to source metaserver at %s: %v\n", srcConn, err)
			continue
		}

		if err := r.SwapOn(ctx, srcPath, srcMeta); err != nil {
			fmt.Printf("failed to swap to source %q: %v\n", srcPath, err)
			srcMeta.Close()
			continue
		}
		fmt.Printf("now relaying %q -> %q\n", srcPath, destPath)
	}
}

func prompt(scanner *bufio.Scanner, msg string) string {
	fmt.Print(msg)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}
