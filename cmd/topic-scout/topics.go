// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/topic-scout/internal/research"
	"github.com/pdiddy/topic-scout/internal/store"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Manage research topics (create, list, delete)",
}

var topicsCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a topic with its sub-topic set",
	Long: `Create stores a new research topic. Sub-topics may be supplied with
--sub-topics; without them the bare title becomes its own single-element
sub-topic set. The title is always a member of the set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.New(cfg.Research.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()

		raw, _ := cmd.Flags().GetString("sub-topics")
		var decomposer research.Decomposer
		if raw != "" {
			decomposer = research.StaticDecomposer(splitList(raw))
		}
		subTopics := research.SubTopics(cmd.Context(), decomposer, args[0])

		topic, err := st.CreateTopic(cmd.Context(), args[0], subTopics)
		if err != nil {
			return err
		}
		fmt.Printf("created topic %s (%d sub-topics)\n", topic.ID, len(topic.SubTopics))
		return nil
	},
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.New(cfg.Research.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()

		topics, err := st.ListTopics(cmd.Context())
		if err != nil {
			return err
		}
		if len(topics) == 0 {
			fmt.Println("No topics.")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Title", "Sub-topics", "Created"})
		for _, topic := range topics {
			t.AppendRow(table.Row{
				topic.ID, topic.Title, len(topic.SubTopics),
				topic.CreatedAt.Format("2006-01-02"),
			})
		}
		t.Render()
		return nil
	},
}

var topicsDeleteCmd = &cobra.Command{
	Use:   "delete [topic-id]",
	Short: "Delete a topic and its merged entities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.New(cfg.Research.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteTopic(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted topic %s\n", args[0])
		return nil
	},
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	topicsCreateCmd.Flags().String("sub-topics", "", "comma-separated sub-topics (default: the bare title)")

	topicsCmd.AddCommand(topicsCreateCmd)
	topicsCmd.AddCommand(topicsListCmd)
	topicsCmd.AddCommand(topicsDeleteCmd)
	rootCmd.AddCommand(topicsCmd)
}
