// Command rft-client is the receiver (client role) supervisor: it resolves
// the remote address, establishes a connection, consumes the stream to a
// local file, and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"rft"
	"rft/handshake"
	"rft/receiver"
	"rft/wire"
)

const defaultOutputPath = "received.file"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rft-client:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	var (
		flagVerbose = false
		flagOutput  = defaultOutputPath
		flagRcvBuf  = 4 * 1024 * 1024
		flagSndBuf  = 4 * 1024 * 1024
	)
	flag.BoolVar(&flagVerbose, "v", flagVerbose, "Enable debug logging.")
	flag.StringVar(&flagOutput, "o", flagOutput, "Output file path.")
	flag.IntVar(&flagRcvBuf, "rcvbuf", flagRcvBuf, "Socket receive buffer size in bytes (0 leaves the kernel default).")
	flag.IntVar(&flagSndBuf, "sndbuf", flagSndBuf, "Socket send buffer size in bytes (0 leaves the kernel default).")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: rft-client [flags] <host> <port>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		return errors.New("expected exactly two positional arguments: host, port")
	}
	host := flag.Arg(0)
	port, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := wire.DialUDP(host, port, flagRcvBuf, flagSndBuf)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer t.Close()

	isn, err := rft.RandomISN()
	if err != nil {
		return err
	}
	hs, err := handshake.ClientHandshake(ctx, t, isn, log)
	if err != nil {
		return err
	}
	log.Info("handshake complete", slog.Uint64("peer_isn", uint64(hs.PeerISN)))

	out, err := os.Create(flagOutput)
	if err != nil {
		return fmt.Errorf("output file: %w", err)
	}
	defer out.Close()

	eng := receiver.New(t, out, hs.Ack, hs.Seq, log)
	if err := eng.Run(ctx); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	log.Info("transfer complete", slog.String("output", flagOutput))
	return nil
}
