// Command poanet starts, inspects and tears down proof-of-authority test
// networks on the local Docker engine.
package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"
)

func main() {
	if err := newApp(&environment{}).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(env *environment) *cli.App {
	app := cli.NewApp()
	app.Name = "poanet"
	app.Usage = "Provision clique proof-of-authority test networks in containers"
	app.Version = "0.1.0"
	app.Writer = os.Stdout
	app.Flags = globalFlags()
	app.Before = env.setup
	app.Commands = []cli.Command{
		{
			Name:   "up",
			Usage:  "Build and start a cluster from a TOML description",
			Flags:  upFlags(),
			Action: env.up,
		},
		{
			Name:   "down",
			Usage:  "Stop and remove a cluster's containers and network",
			Flags:  downFlags(),
			Action: env.down,
		},
		{
			Name:   "status",
			Usage:  "Show a cluster and its nodes",
			Flags:  []cli.Flag{clusterFlag},
			Action: env.status,
		},
		{
			Name:   "list",
			Usage:  "List clusters persisted under the base directory",
			Action: env.list,
		},
		{
			Name:   "add-node",
			Usage:  "Add a node to a running cluster",
			Flags:  addNodeFlags(),
			Action: env.addNode,
		},
		{
			Name:   "remove-node",
			Usage:  "Remove a node from a running cluster",
			Flags:  []cli.Flag{clusterFlag, nodeNameFlag},
			Action: env.removeNode,
		},
		{
			Name:   "logs",
			Usage:  "Print a node's container logs",
			Flags:  logsFlags(),
			Action: env.logs,
		},
	}
	return app
}
