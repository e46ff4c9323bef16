package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/eleven-am/poanet"
)

func printInfo(w io.Writer, info poanet.Info) {
	fmt.Fprintf(w, "cluster:      %s\n", info.Cluster)
	fmt.Fprintf(w, "status:       %s\n", info.Status)
	fmt.Fprintf(w, "chain id:     %d\n", info.ChainID)
	fmt.Fprintf(w, "block period: %ds\n", info.BlockPeriod)
	fmt.Fprintf(w, "subnet:       %s\n", info.Subnet)
	if info.LatestBlock > 0 {
		fmt.Fprintf(w, "latest block: %d\n", info.LatestBlock)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tIP\tADDRESS\tROLE\tSTATUS\tRPC")
	for _, n := range info.Nodes {
		role := "peer"
		if n.Validator {
			role = "validator"
		}
		rpc := n.RPCURL
		if rpc == "" {
			rpc = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", n.Name, n.IP, n.Address, role, n.Status, rpc)
	}
	tw.Flush()
}

func printClusters(w io.Writer, clusters []poanet.ClusterMetadata) {
	if len(clusters) == 0 {
		fmt.Fprintln(w, "no clusters")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CLUSTER\tCHAIN ID\tSUBNET\tNODES\tCREATED")
	for _, c := range clusters {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n", c.ClusterName, c.ChainID, c.Subnet, len(c.Nodes), c.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}
