// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/poiesic/kbflow"
	"github.com/poiesic/kbflow/config"
	"github.com/poiesic/kbflow/core"
	"github.com/poiesic/kbflow/graph"
	"github.com/poiesic/kbflow/progress"
	"github.com/urfave/cli/v2"
)

// openKnowledgebase opens the knowledge base a command works on.
var openKnowledgebase = func(c *cli.Context) (*kbflow.Knowledgebase, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	path := cfg.Storage.Path
	if c.IsSet("db") {
		path = c.String("db")
	}
	return kbflow.Open(path, kbflow.WithConfig(cfg))
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	idArg := "DOCUMENT_ID"
	return &cli.App{
		Name:  "kbflow",
		Usage: "Turn documents into a knowledge base of embedded segments and an entity graph",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				Value:   config.DefaultPath,
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides [storage] path)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest files into a dataset and wait for processing",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Usage:    "Dataset the documents belong to",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "markdown",
						Usage: "Treat every file as markdown (default: by .md extension)",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Do not report progress",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the processing state of a document",
				ArgsUsage: idArg,
				Action:    statusCommand,
			},
			{
				Name:   "list",
				Usage:  "List the documents of a dataset",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Usage:    "Dataset to list",
						Required: true,
					},
				},
			},
			{
				Name:      "resume",
				Usage:     "Resume a document in error or paused and wait for it",
				ArgsUsage: idArg,
				Action:    resumeCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Reprocess every segment of the resumed stage",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "Do not report progress",
					},
				},
			},
			{
				Name:      "pause",
				Usage:     "Pause a document so it can be resumed (e.g. one left mid-stage by a crash)",
				ArgsUsage: idArg,
				Action:    pauseCommand,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a document for good",
				ArgsUsage: idArg,
				Action:    cancelCommand,
			},
			{
				Name:   "graph",
				Usage:  "Print the entity graph of a dataset",
				Action: graphCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dataset",
						Usage:    "Dataset to print",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Only print nodes of this type (synonyms accepted)",
					},
				},
			},
		},
	}
}

// signalContext is cancelled on SIGINT or SIGTERM. Running documents are
// then left paused.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

// follow reports progress events until ctx ends.
func follow(ctx context.Context, c *cli.Context, kb *kbflow.Knowledgebase) (func(), error) {
	if c.Bool("quiet") {
		return func() {}, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	events, err := kb.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	reporter := progress.NewConsoleReporter(c.App.ErrWriter)
	done := make(chan struct{})
	go func() {
		defer close(done)
		reporter.Run(ctx, events)
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}

	kb, err := openKnowledgebase(c)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()

	ctx, stop := signalContext(c)
	defer stop()
	stopFollowing, err := follow(ctx, c, kb)
	if err != nil {
		return err
	}

	var failed int
	for _, path := range c.Args().Slice() {
		content, err := os.ReadFile(path)
		if err != nil {
			stopFollowing()
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		contentType := core.ContentTypePlain
		if c.Bool("markdown") || strings.EqualFold(filepath.Ext(path), ".md") {
			contentType = core.ContentTypeMarkdown
		}

		doc, err := kb.IngestAndWait(ctx, &core.Document{
			DatasetId:   c.String("dataset"),
			Name:        filepath.Base(path),
			ContentType: contentType,
			Content:     string(content),
		})
		if err != nil {
			stopFollowing()
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		if doc.Status != core.StatusCompleted {
			failed++
		}
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", doc.Id, doc.Status, doc.Name)
		if ctx.Err() != nil {
			break
		}
	}
	stopFollowing()

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d document(s) did not complete", failed), 1)
	}
	return nil
}

func documentID(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("exactly one document id is required")
	}
	return c.Args().First(), nil
}

func statusCommand(c *cli.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	kb, err := openKnowledgebase(c)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()

	doc, err := kb.Status(c.Context, id)
	if err != nil {
		return err
	}
	printStatus(c, doc)
	return nil
}

func printStatus(c *cli.Context, doc *core.Document) {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "document:\t%s (%s)\n", doc.Id, doc.Name)
	fmt.Fprintf(w, "dataset:\t%s\n", doc.DatasetId)
	fmt.Fprintf(w, "status:\t%s\n", doc.Status)
	for _, stage := range core.Stages {
		p := doc.Metadata.Progress(stage)
		if p.Runs == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\t%d/%d processed, %d failed", stage, p.SegmentsProcessed, p.Total, p.SegmentsFailed)
		if p.NodesCreated > 0 || p.EdgesCreated > 0 {
			fmt.Fprintf(w, ", %d nodes, %d edges", p.NodesCreated, p.EdgesCreated)
		}
		fmt.Fprintf(w, " (runs: %d)\n", p.Runs)
	}
	if e := doc.Metadata.LastError; e != nil && doc.Status == core.StatusError {
		fmt.Fprintf(w, "error:\t%s: %s\n", e.Stage, e.Message)
	}
	w.Flush()
}

func listCommand(c *cli.Context) error {
	kb, err := openKnowledgebase(c)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()

	docs, err := kb.Documents(c.Context, c.String("dataset"))
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	for _, doc := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", doc.Id, doc.Status, doc.Name)
	}
	return w.Flush()
}

func resumeCommand(c *cli.Context) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	kb, err := openKnowledgebase(c)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()

	ctx, stop := signalContext(c)
	defer stop()
	stopFollowing, err := follow(ctx, c, kb)
	if err != nil {
		return err
	}

	if err := kb.Resume(ctx, id, c.Bool("force")); err != nil {
		stopFollowing()
		return err
	}
	// The pipeline runs on its own context, so an interrupt is turned into a pause.
	finished := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			if err := kb.Pause(context.WithoutCancel(ctx), id); err != nil {
				slog.Warn("failed to pause document", "document", id, "err", err)
			}
		case <-finished:
		}
	}()
	kb.Wait()
	close(finished)
	<-watcher
	stopFollowing()

	doc, err := kb.Status(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	printStatus(c, doc)
	if doc.Status != core.StatusCompleted {
		return cli.Exit("document did not complete", 1)
	}
	return nil
}

func pauseCommand(c *cli.Context) error {
	return control(c, (*kbflow.Knowledgebase).Pause)
}

func cancelCommand(c *cli.Context) error {
	return control(c, (*kbflow.Knowledgebase).Cancel)
}

// control applies op to the document and prints the status it ends in.
func control(c *cli.Context, op func(*kbflow.Knowledgebase, context.Context, string) error) error {
	id, err := documentID(c)
	if err != nil {
		return err
	}
	kb, err := openKnowledgebase(c)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()

	if err := op(kb, c.Context, id); err != nil {
		return err
	}
	doc, err := kb.Status(c.Context, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\n", id, doc.Status)
	return nil
}

func graphCommand(c *cli.Context) error {
	kb, err := openKnowledgebase(c)
	if err != nil {
		return fmt.Errorf("failed to open knowledge base: %w", err)
	}
	defer kb.Close()

	dataset := c.String("dataset")
	nodes, err := kb.Nodes(c.Context, dataset)
	if err != nil {
		return err
	}
	edges, err := kb.Edges(c.Context, dataset)
	if err != nil {
		return err
	}

	filter := ""
	if t := c.String("type"); t != "" {
		filter = string(graph.NormalizeNodeType(t))
	}
	labels := make(map[core.ID]string, len(nodes))
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tTYPE\tMENTIONS")
	for _, n := range nodes {
		labels[n.Id] = n.Label
		if filter != "" && string(n.Type) != filter {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", n.Label, n.Type, n.Mentions)
	}
	if filter == "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "SOURCE\tEDGE\tTARGET\tWEIGHT")
		for _, e := range edges {
			weight := "-"
			if e.Weight != nil {
				weight = fmt.Sprintf("%.2f", *e.Weight)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", labels[e.SourceNodeId], e.Type, labels[e.TargetNodeId], weight)
		}
	}
	return w.Flush()
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
