package main

import (
    "context"
    "io"
    "os"
    "os/signal"
    "sync/atomic"
    "syscall"

    "go.uber.org/zap"

    "netinf/pkg/config"
    "netinf/pkg/node"
    "netinf/pkg/object"
    "netinf/pkg/observability"
    "netinf/pkg/provider"
    "netinf/pkg/transport"
)

// Exit codes of a one-shot request.
const (
    exitOK = iota
    exitSetup
    exitTransport
    exitProtocol
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    var level atomic.Pointer[zap.AtomicLevel]
    cfg, err := config.Watch(opts.ConfigPath, func(c *config.Config) {
        if l := level.Load(); l != nil { observability.ApplyLevel(*l, c.Log) }
    })
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return exitSetup
    }
    if opts.Timeout > 0 { cfg.Provider.TimeoutMS = int(opts.Timeout.Milliseconds()) }

    logger, lvl, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return exitSetup
    }
    level.Store(&lvl)
    defer func() { _ = logger.Sync() }()

    zap.L().Info("netinf-node started", zap.String("label", cfg.Label))
    zap.L().Debug("effective configuration", zap.Any("config", cfg))

    n, err := node.New(cfg)
    if err != nil {
        zap.L().Error("failed to build node", zap.Error(err))
        return exitSetup
    }
    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    if err := n.Start(ctx); err != nil {
        zap.L().Error("failed to start node", zap.Error(err))
        return exitSetup
    }
    defer n.Close()

    peer := transport.PeerID(opts.Peer)
    switch {
    case opts.Get != "":
        o, err := n.Get(ctx, peer, opts.Get)
        if err != nil { return failed("get", err) }
        _, _ = os.Stdout.Write(o.Payload())
        return exitOK
    case opts.Put != "":
        data, err := readData(opts.Data)
        if err != nil {
            zap.L().Error("failed to read payload", zap.String("data", opts.Data), zap.Error(err))
            return exitSetup
        }
        if err := n.Put(ctx, peer, object.New(opts.Put, data)); err != nil { return failed("put", err) }
        zap.L().Info("object published", zap.String("id", opts.Put), zap.Int("bytes", len(data)))
        return exitOK
    }

    zap.L().Info("node is running; press Ctrl+C to exit", zap.String("id", string(n.ID())), zap.String("addr", n.Addr()))
    <-ctx.Done()
    return exitOK
}

func failed(op string, err error) int {
    zap.L().Error(op+" failed", zap.Error(err),
        zap.Bool("transport_failure", provider.IsTransportFailure(err)),
        zap.Bool("protocol_failure", provider.IsProtocolFailure(err)))
    switch {
    case provider.IsTransportFailure(err):
        return exitTransport
    case provider.IsProtocolFailure(err):
        return exitProtocol
    default:
        return exitSetup
    }
}

func readData(path string) ([]byte, error) {
    if path == "" || path == "-" { return io.ReadAll(os.Stdin) }
    return os.ReadFile(path)
}
