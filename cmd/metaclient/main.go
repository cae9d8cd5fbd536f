// Command metaclient is Agora's operator-facing REPL: it connects to a
// metaserver and lets an operator inspect, remove and monitor
// registered paths interactively.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/nlyu1/agora/internal/connhandle"
	"github.com/nlyu1/agora/internal/metaserver"
	"github.com/nlyu1/agora/internal/subscriber"
)

var (
	isTTY   = isatty.IsTerminal(os.Stdout.Fd())
	okGlyph = status(color.FgGreen, "✓")
	failGlyph = status(color.FgRed, "×")
	infoGlyph = status(color.FgCyan, "ℹ")
)

func status(attr color.Attribute, glyph string) string {
	if !isTTY {
		return glyph
	}
	return color.New(attr, color.Bold).SprintFunc()(glyph)
}

func main() {
	addr := flag.String("address", "127.0.0.1", "metaserver host")
	port := flag.Uint("port", 8000, "metaserver TCP port")
	flag.Parse()

	conn := connhandle.New(*addr, uint16(*port))

	client, err := metaserver.Dial(conn)
	if err != nil {
		fmt.Printf("%s failed to connect to metaserver at %s: %v\n", failGlyph, conn, err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Printf("%s connected to metaserver at %s\n", okGlyph, conn)
	printHelp()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("agora> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		cmd := fields[0]
		var arg string
		if len(fields) > 1 {
			arg = strings.TrimSpace(fields[1])
		}

		switch cmd {
		case "remove":
			runRemove(client, arg)
		case "info":
			runInfo(client, arg)
		case "monitor":
			runMonitor(client, arg)
		case "print":
			runPrint(client)
		case "help":
			printHelp()
		case "quit", "exit":
			fmt.Printf("%s goodbye\n", infoGlyph)
			return
		default:
			fmt.Printf("%s unknown command %q, type `help`\n", failGlyph, cmd)
		}
	}
}

func printHelp() {
	fmt.Println("commands:")
	fmt.Println("  remove <path>   remove a registered publisher")
	fmt.Println("  info <path>     show a publisher's registration status")
	fmt.Println("  monitor <path>  stream a publisher's string view until Enter")
	fmt.Println("  print           render the full path tree")
	fmt.Println("  help            show this message")
	fmt.Println("  quit, exit      leave the REPL")
}

func runRemove(client *metaserver.Client, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := client.RemovePublisher(ctx, path)
	if err != nil {
		fmt.Printf("%s %v\n", failGlyph, err)
		return
	}
	fmt.Printf("%s removed %+v\n", okGlyph, info)
}

func runInfo(client *metaserver.Client, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := client.PublisherInfo(ctx, path)
	if err != nil {
		fmt.Printf("%s %v\n", failGlyph, err)
		return
	}
	fmt.Printf("%s %+v\n", okGlyph, info)
}

func runPrint(client *metaserver.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tree, err := client.PathTree(ctx)
	if err != nil {
		fmt.Printf("%s %v\n", failGlyph, err)
		return
	}
	fmt.Println(tree.DisplayTree())
}

func runMonitor(client *metaserver.Client, path string) {
	sp := newSpinner("resolving " + path)
	sp.Start()

	sub, err := subscriber.NewOmni(context.Background(), path, client, nil)
	sp.Stop()
	if err != nil {
		fmt.Printf("%s %v\n", failGlyph, err)
		return
	}
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	current, stream, err := sub.GetStream(ctx)
	if err != nil {
		fmt.Printf("%s %v\n", failGlyph, err)
		return
	}
	fmt.Printf("%s %s\n", infoGlyph, current)

	fmt.Println("press Enter to stop monitoring")
	stopReading := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(stopReading)
	}()

	for {
		select {
		case item, ok := <-stream:
			if !ok {
				return
			}
			if item.Err != nil {
				fmt.Printf("%s %v\n", failGlyph, item.Err)
				continue
			}
			fmt.Printf("%s %s\n", infoGlyph, item.Value)
		case <-stopReading:
			return
		}
	}
}

func newSpinner(suffix string) *spinner.Spinner {
	sp := spinner.New(spinner.CharSets[9], 100*time.Millisecond)
	sp.Suffix = " " + suffix
	if !isTTY {
		sp.Writer = nullWriter{}
	}
	return sp
}

type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }
