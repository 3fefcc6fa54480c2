package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/live"
	"kafkaviz/internal/offsets"
)

func topicsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "topics [TOPIC]",
		Short: "List topics with partition and replication metadata",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.requestContext(cmd.Context())
			defer cancel()
			client := o.client()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				t, err := client.RefreshTopic(ctx, args[0])
				if err != nil {
					return err
				}
				printTopic(out, t)
				return nil
			}

			all, err := client.ListTopics(ctx)
			if errors.Is(err, domain.ErrNoTopicsFound) {
				fmt.Fprintln(out, "No topics found")
				return nil
			}
			if err != nil {
				return err
			}
			printTopics(out, all)
			return nil
		},
	}
}

func messagesCmd(o *options) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "messages TOPIC [PARTITION [START-END]]",
		Short: "Print a range of messages from a partition",
		Long: `Print messages from one partition. Without a range the newest messages are
shown. With --all the newest messages of every partition are fetched at once.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.requestContext(cmd.Context())
			defer cancel()
			client := o.client()
			out := cmd.OutOrStdout()
			window := int64(o.cfg.UI.DefaultWindow)

			topic, err := client.RefreshTopic(ctx, args[0])
			if err != nil {
				return err
			}

			if all {
				if len(args) > 1 {
					return fmt.Errorf("--all takes only a topic")
				}
				ranges := make(map[int]domain.MessageRange, len(topic.Partitions))
				for _, p := range topic.Partitions {
					rng, err := offsets.ResolveWindow("", p.MessageCount, window)
					if err != nil {
						return err
					}
					ranges[p.ID] = rng
				}
				byPartition, err := client.FetchAll(ctx, topic.Name, ranges)
				if err != nil {
					return err
				}
				for _, id := range topic.PartitionIDs() {
					fmt.Fprintf(out, "partition %d [%s]\n", id, ranges[id])
					printMessages(out, byPartition[id])
				}
				return nil
			}

			if len(args) < 2 {
				return fmt.Errorf("partition is required without --all")
			}
			id, err := strconv.Atoi(args[1])
			if err != nil {
				return &domain.InvalidRequestError{Op: "fetch messages", Reason: fmt.Sprintf("bad partition %q", args[1])}
			}
			part, ok := topic.Partition(id)
			if !ok {
				return &domain.InvalidRequestError{Op: "fetch messages", Reason: fmt.Sprintf("topic %s has no partition %d", topic.Name, id)}
			}
			var requested string
			if len(args) == 3 {
				requested = args[2]
			}
			rng, err := offsets.ResolveWindow(requested, part.MessageCount, window)
			if err != nil {
				return err
			}

			msgs, err := client.FetchMessages(ctx, topic.Name, id, rng)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "partition %d [%s]\n", id, rng)
			printMessages(out, msgs)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Fetch the newest messages of every partition")
	return cmd
}

func publishCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "publish TOPIC PAYLOAD",
		Short: "Publish a message and print the refreshed topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := o.requestContext(cmd.Context())
			defer cancel()
			client := o.client()

			if err := client.Publish(ctx, args[0], args[1]); err != nil {
				return err
			}
			t, err := client.RefreshTopic(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Published to %s\n", t.Name)
			printTopic(out, t)
			return nil
		},
	}
}

func pollCmd(o *options) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "poll TOPIC",
		Short: "Follow a topic and print each metadata update",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, err := o.dialer().OpenPoll(ctx, args[0])
			if err != nil {
				return err
			}
			defer h.Close()

			out := cmd.OutOrStdout()
			seen := 0
			for {
				select {
				case t, ok := <-h.Snapshots():
					if !ok {
						if err := h.Err(); err != nil && !interrupted(err) {
							return err
						}
						return nil
					}
					fmt.Fprintf(out, "%s  %s msgs  %s\n", t.Name, humanize.Comma(t.TotalMessages()), partitionSummary(t))
					seen++
					if count > 0 && seen >= count {
						return nil
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many updates (0 runs until interrupted)")
	return cmd
}

func searchCmd(o *options) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "search TOPIC KEYWORD",
		Short: "Stream messages containing a keyword",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			searches := live.NewSearches(o.dialer())
			defer searches.StopAll()

			h, err := searches.Start(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			seen := 0
			for {
				select {
				case m, ok := <-h.Matches():
					if !ok {
						if err := h.Err(); err != nil && !interrupted(err) {
							return err
						}
						return nil
					}
					fmt.Fprintf(out, "p%d@%d\t%s\n", m.PartitionID, m.Offset, m.Payload)
					seen++
					if count > 0 && seen >= count {
						return nil
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many matches (0 runs until interrupted)")
	return cmd
}

func printTopics(w io.Writer, all []domain.Topic) {
	sorted := append([]domain.Topic(nil), all...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOPIC\tPARTITIONS\tREPLICATION\tMESSAGES")
	for _, t := range sorted {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.Name, t.PartitionCount, t.ReplicationFactor, humanize.Comma(t.TotalMessages()))
	}
	_ = tw.Flush()
}

func printTopic(w io.Writer, t domain.Topic) {
	fmt.Fprintf(w, "%s  partitions=%d replication=%d messages=%s\n", t.Name, t.PartitionCount, t.ReplicationFactor, humanize.Comma(t.TotalMessages()))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  PARTITION\tMESSAGES")
	for _, p := range t.Partitions {
		fmt.Fprintf(tw, "  %d\t%s\n", p.ID, humanize.Comma(p.MessageCount))
	}
	_ = tw.Flush()
}

func printMessages(w io.Writer, msgs []domain.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "  (no messages)")
		return
	}
	for _, m := range msgs {
		fmt.Fprintf(w, "  %d\t%s\n", m.Offset, m.Payload)
	}
}

func partitionSummary(t domain.Topic) string {
	s := ""
	for i, p := range t.Partitions {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("p%d=%s", p.ID, humanize.Comma(p.MessageCount))
	}
	return s
}
