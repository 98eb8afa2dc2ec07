// Command rft-server is the sender (server role) supervisor: it binds a
// well-known port, accepts one connection at a time, streams the
// configured file to each peer that completes a handshake, and loops until
// signalled to stop.
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

	"github.com/google/uuid"

	"rft"
	"rft/congestion"
	"rft/handshake"
	"rft/sender"
	"rft/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rft-server:", err)
		os.Exit(1)
	}
}

func run() (err error) {
	var (
		flagVerbose = false
		flagRcvBuf  = 4 * 1024 * 1024
		flagSndBuf  = 4 * 1024 * 1024
	)
	flag.BoolVar(&flagVerbose, "v", flagVerbose, "Enable debug logging.")
	flag.IntVar(&flagRcvBuf, "rcvbuf", flagRcvBuf, "Socket receive buffer size in bytes (0 leaves the kernel default).")
	flag.IntVar(&flagSndBuf, "sndbuf", flagSndBuf, "Socket send buffer size in bytes (0 leaves the kernel default).")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: rft-server [flags] <port> <file>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		return errors.New("expected exactly two positional arguments: port, file")
	}
	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	path := flag.Arg(1)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("input file: %w", err)
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	t, err := wire.ListenUDP(port, flagRcvBuf, flagSndBuf)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer t.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Listening for a SYN blocks in Recv with no deadline; closing the
	// socket on a signal is what unblocks it.
	go func() {
		<-ctx.Done()
		t.Close()
	}()

	log.Info("listening", slog.Int("port", port), slog.String("file", path))
	for {
		if ctx.Err() != nil {
			return nil
		}
		t.ResetPeer()
		if err := serveOne(ctx, t, path, log); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			log.Error("connection failed", slog.String("err", err.Error()))
			// One failed transfer never prevents serving the next client.
		}
	}
}

func serveOne(ctx context.Context, t *wire.UDPTransport, path string, log *slog.Logger) error {
	connID := uuid.New()
	log = log.With(slog.String("conn", connID.String()))

	isn, err := rft.RandomISN()
	if err != nil {
		return err
	}
	hs, err := handshake.ServerHandshake(ctx, t, isn, log)
	if err != nil {
		return err
	}
	log.Info("handshake complete", slog.Uint64("peer_isn", uint64(hs.PeerISN)))

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ctrl := congestion.New(log)
	eng := sender.New(t, ctrl, f, hs.Seq, log)
	if err := eng.Run(ctx); err != nil {
		return err
	}

	if err := handshake.SenderClose(ctx, t, eng.LastSeq(), log); err != nil {
		return err
	}
	log.Info("transfer complete")
	return nil
}
