package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/eleven-am/poanet"
	"github.com/eleven-am/poanet/internal/config"
	"github.com/eleven-am/poanet/internal/domain"
)

// environment carries what the global flags configure into each command.
type environment struct {
	logger  hclog.Logger
	baseDir string
	open    func(logger hclog.Logger) (*poanet.Session, error)
}

func (e *environment) setup(c *cli.Context) error {
	logger, err := newLogger(c.GlobalString("log.level"), c.GlobalBool("log.json"), os.Stderr)
	if err != nil {
		return err
	}
	e.logger = logger
	e.baseDir = c.GlobalString("base-dir")
	if e.open == nil {
		e.open = poanet.Open
	}
	return nil
}

func (e *environment) session() (*poanet.Session, error) {
	session, err := e.open(e.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to container engine: %w", err)
	}
	return session, nil
}

// restore opens a session and rebuilds the orchestrator of --cluster. The
// returned release detaches the orchestrator and closes the session.
func (e *environment) restore(ctx context.Context, c *cli.Context) (*poanet.Orchestrator, func(), error) {
	name, err := requireString(c, "cluster")
	if err != nil {
		return nil, nil, err
	}
	session, err := e.session()
	if err != nil {
		return nil, nil, err
	}
	orch, err := session.Restore(ctx, e.baseDir, name, domain.DefaultReadinessConfig())
	if err != nil {
		_ = session.Close()
		return nil, nil, err
	}
	release := func() {
		orch.Detach()
		if err := session.Close(); err != nil {
			e.logger.Warn("closing session", "error", err)
		}
	}
	return orch, release, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (e *environment) up(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.GlobalIsSet("base-dir") {
		cfg.BaseDir = e.baseDir
	}

	session, err := e.session()
	if err != nil {
		return err
	}
	defer session.Close()

	defaults := cfg.Defaults()
	b := session.NewBuilder(&defaults)
	if err := cfg.Apply(b); err != nil {
		return err
	}
	b.WithAutoStart(true)

	var blocks <-chan domain.Event
	if bus := session.Events(); c.Bool("watch") && bus != nil {
		ch, unsubscribe := bus.Channel(domain.EventNewBlock, 16)
		defer unsubscribe()
		blocks = ch
	}

	orch, err := b.Build(ctx)
	if err != nil {
		return err
	}
	defer orch.Detach()

	printInfo(c.App.Writer, orch.Info())
	if blocks == nil {
		return nil
	}

	e.logger.Info("watching for new blocks, interrupt to exit", "cluster", orch.Config().Name)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("stopped watching; cluster left running", "cluster", orch.Config().Name)
			return nil
		case ev, ok := <-blocks:
			if !ok {
				return nil
			}
			if block, isBlock := ev.(domain.NewBlock); isBlock {
				e.logger.Info("new block", "cluster", block.Cluster, "number", block.Number)
			}
		}
	}
}

func (e *environment) down(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	orch, release, err := e.restore(ctx, c)
	if err != nil {
		return err
	}
	defer release()

	purge := c.Bool("purge")
	if err := orch.Teardown(ctx, purge); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "cluster %s stopped\n", orch.Config().Name)
	if purge {
		fmt.Fprintf(c.App.Writer, "removed %s\n", orch.Layout().ClusterDir())
	}
	return nil
}

func (e *environment) status(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	orch, release, err := e.restore(ctx, c)
	if err != nil {
		return err
	}
	defer release()

	printInfo(c.App.Writer, orch.Info())
	return nil
}

func (e *environment) list(c *cli.Context) error {
	session, err := e.session()
	if err != nil {
		return err
	}
	defer session.Close()

	clusters, err := session.List(e.baseDir)
	if err != nil {
		return err
	}
	printClusters(c.App.Writer, clusters)
	return nil
}

func (e *environment) addNode(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	name, err := requireString(c, "name")
	if err != nil {
		return err
	}
	ip, err := requireString(c, "ip")
	if err != nil {
		return err
	}
	spec := domain.NodeSpec{
		Name:      name,
		IP:        ip,
		Validator: c.Bool("validator"),
		RPC:       c.Bool("rpc") || c.Int("rpc-port") > 0,
		RPCPort:   c.Int("rpc-port"),
		Balance:   c.String("balance"),
		Seed:      c.String("seed"),
	}

	orch, release, err := e.restore(ctx, c)
	if err != nil {
		return err
	}
	defer release()

	result, err := orch.AddNode(ctx, spec)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "added %s (%s)\n", result.Node, result.Address)
	if spec.Balance != "" {
		if result.Funded {
			fmt.Fprintf(c.App.Writer, "funded with %s ETH in %s\n", spec.Balance, result.TxHash)
		} else {
			fmt.Fprintln(c.App.Writer, "funding transfer was not submitted; see the log for details")
		}
	}
	return nil
}

func (e *environment) removeNode(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	name, err := requireString(c, "name")
	if err != nil {
		return err
	}
	orch, release, err := e.restore(ctx, c)
	if err != nil {
		return err
	}
	defer release()

	if err := orch.RemoveNode(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %s\n", name)
	return nil
}

func (e *environment) logs(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	name, err := requireString(c, "node")
	if err != nil {
		return err
	}
	orch, release, err := e.restore(ctx, c)
	if err != nil {
		return err
	}
	defer release()

	n, ok := orch.Node(name)
	if !ok {
		return &domain.NotFoundError{Kind: domain.NotFoundNode, Name: name}
	}
	out, err := n.Logs(ctx, c.Int("tail"))
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, out)
	return nil
}
