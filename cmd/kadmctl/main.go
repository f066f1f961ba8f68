// Command kadmctl is a tiny CLI over pkg/kadmops, exercising the
// dispatch core end to end against a real cluster the way
// examples/admin_client exercises pkg/kadm.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
	"github.com/kadmin-go/kadmin/pkg/kadmintransport"
	"github.com/kadmin-go/kadmin/pkg/kadmops"
	"github.com/kadmin-go/kadmin/plugin/kadmlogrus"
)

func die(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg+"\n", args...)
	os.Exit(1)
}

func main() {
	seeds := flag.String("seeds", "localhost:9092", "comma-separated bootstrap addresses")
	clientID := flag.String("client-id", "kadmctl", "client id sent with every request")
	timeout := flag.Duration("timeout", 15*time.Second, "per-command timeout")
	verbose := flag.Bool("verbose", false, "log Call lifecycle events (submit/assign/send/retry/complete) to stderr")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		die("usage: kadmctl [-seeds addr,addr] [-client-id id] [-verbose] <list-topics|create-topic|delete-topic|describe-groups> ...")
	}

	pool := kadmintransport.NewPool(
		kadmintransport.WithSeeds(strings.Split(*seeds, ",")...),
		kadmintransport.WithClientID(*clientID),
	)
	defer pool.Close()

	opts := []kadmin.Opt{
		kadmin.WithNetworkClient(pool),
		kadmin.WithDefaultTimeout(*timeout),
	}
	if *verbose {
		lr := logrus.New()
		lr.SetLevel(logrus.DebugLevel)
		logger := kadmlogrus.New(lr)
		opts = append(opts, kadmin.WithLogger(logger), kadmin.WithHooks(logger))
	}

	core, err := kadmin.NewClient(opts...)
	if err != nil {
		die("failed to start admin core: %v", err)
	}
	defer core.Close(5 * time.Second)

	cl := kadmops.NewClient(core)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "list-topics":
		runListTopics(ctx, cl, rest)
	case "create-topic":
		runCreateTopic(ctx, cl, rest)
	case "delete-topic":
		runDeleteTopic(ctx, cl, rest)
	case "describe-groups":
		runDescribeGroups(ctx, cl, rest)
	default:
		die("unknown command %q", cmd)
	}
}

func runListTopics(ctx context.Context, cl *kadmops.Client, topics []string) {
	list, err := cl.ListTopics(ctx, topics...)
	if err != nil {
		die("failed to list topics: %v", err)
	}
	for _, t := range list {
		if t.Err != nil {
			fmt.Printf("%s\terror: %v\n", t.Topic, t.Err)
			continue
		}
		fmt.Printf("%s\t%d partitions\n", t.Topic, t.Partitions)
	}
}

func runCreateTopic(ctx context.Context, cl *kadmops.Client, args []string) {
	fs := flag.NewFlagSet("create-topic", flag.ExitOnError)
	partitions := fs.Int("partitions", -1, "partition count, -1 for broker default")
	rf := fs.Int("replication-factor", -1, "replication factor, -1 for broker default")
	fs.Parse(args)
	if fs.NArg() == 0 {
		die("usage: kadmctl create-topic [-partitions n] [-replication-factor n] <topic>...")
	}

	results, err := cl.CreateTopics(ctx, int32(*partitions), int16(*rf), nil, fs.Args()...)
	if err != nil {
		die("failed to create topics: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s\tfailed: %v\n", r.Topic, r.Err)
			continue
		}
		fmt.Printf("%s\tcreated\n", r.Topic)
	}
}

func runDeleteTopic(ctx context.Context, cl *kadmops.Client, topics []string) {
	if len(topics) == 0 {
		die("usage: kadmctl delete-topic <topic>...")
	}
	results, err := cl.DeleteTopics(ctx, topics...)
	if err != nil {
		die("failed to delete topics: %v", err)
	}
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%s\tfailed: %v\n", r.Topic, r.Err)
			continue
		}
		fmt.Printf("%s\tdeleted\n", r.Topic)
	}
}

func runDescribeGroups(ctx context.Context, cl *kadmops.Client, groups []string) {
	if len(groups) == 0 {
		die("usage: kadmctl describe-groups <group>...")
	}
	descs, err := cl.DescribeGroups(ctx, groups...)
	if err != nil {
		die("failed to describe groups: %v", err)
	}
	for _, g := range descs {
		if g.Err != nil {
			fmt.Printf("%s\terror: %v\n", g.GroupID, g.Err)
			continue
		}
		fmt.Printf("%s\tstate=%s protocol=%s members=%d\n", g.GroupID, g.State, g.Protocol, len(g.Members))
	}
}
