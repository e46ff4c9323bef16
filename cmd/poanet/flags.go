package main

import (
	"fmt"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/eleven-am/poanet/internal/domain"
)

var (
	clusterFlag = cli.StringFlag{
		Name:  "cluster",
		Usage: "Cluster name",
	}
	nodeNameFlag = cli.StringFlag{
		Name:  "name",
		Usage: "Node name",
	}
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "base-dir",
			Usage: "Directory holding per-cluster genesis, keys and metadata",
			Value: domain.DefaultBaseDir,
		},
		cli.StringFlag{
			Name:  "log.level",
			Usage: "Log level (trace|debug|info|warn|error)",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "log.json",
			Usage: "Emit logs as JSON",
		},
	}
}

func upFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "Cluster description (TOML)",
			Value: "cluster.toml",
		},
		cli.BoolFlag{
			Name:  "watch",
			Usage: "Log new blocks until interrupted; the cluster keeps running afterwards",
		},
	}
}

func downFlags() []cli.Flag {
	return []cli.Flag{
		clusterFlag,
		cli.BoolFlag{
			Name:  "purge",
			Usage: "Also delete the cluster's data directory",
		},
	}
}

func addNodeFlags() []cli.Flag {
	return []cli.Flag{
		clusterFlag,
		nodeNameFlag,
		cli.StringFlag{
			Name:  "ip",
			Usage: "Node address inside the cluster subnet",
		},
		cli.BoolFlag{
			Name:  "validator",
			Usage: "Mark the node as a validator",
		},
		cli.BoolFlag{
			Name:  "rpc",
			Usage: "Enable the HTTP JSON-RPC endpoint",
		},
		cli.IntFlag{
			Name:  "rpc-port",
			Usage: "Host port for the RPC endpoint (0 keeps it internal)",
		},
		cli.StringFlag{
			Name:  "balance",
			Usage: "Ether transferred to the node after it starts",
		},
		cli.StringFlag{
			Name:  "seed",
			Usage: "Derive the node key deterministically from this seed",
		},
	}
}

func logsFlags() []cli.Flag {
	return []cli.Flag{
		clusterFlag,
		cli.StringFlag{
			Name:  "node",
			Usage: "Node name",
		},
		cli.IntFlag{
			Name:  "tail",
			Usage: "Number of lines from the end of the log",
			Value: 100,
		},
	}
}

func requireString(c *cli.Context, name string) (string, error) {
	value := c.String(name)
	if value == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return value, nil
}
