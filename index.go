package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/erikbos/flux-server/config"
	"github.com/erikbos/flux-server/database"
	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/extract"
	"github.com/erikbos/flux-server/indexer"
)

func runIndex(args []string) {
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	switch args[0] {
	case "create":
		runIndexCreate(args[1:])
	case "add":
		runIndexAdd(args[1:])
	case "rm":
		runIndexRm(args[1:])
	case "show":
		runIndexShow(args[1:])
	case "gc":
		runIndexGc(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown index command %q\n\n%s", args[0], usage)
		os.Exit(2)
	}
}

// openRepo opens the index database named by the configuration.
func openRepo(cfg *config.Config) database.Repository {
	repo, err := database.New(&database.Options{Filename: cfg.DatabasePath()})
	if err != nil {
		log.Fatalf("cannot open index: %s", err)
	}
	return repo
}

// newBuilder wires the index builder with the configured tools.
func newBuilder(cfg *config.Config, repo database.Repository, verbose bool) *indexer.Builder {
	return indexer.New(&indexer.Options{
		Repo: repo,
		Extract: extract.New(&extract.Options{
			FFprobePath: cfg.Extract.FFprobePath,
			FFmpegPath:  cfg.Extract.FFmpegPath,
			Timeout:     cfg.Extract.Timeout,
		}),
		ThumbnailDir: cfg.ThumbnailPath(),
		Workers:      cfg.Extract.Workers,
		Verbose:      verbose,
	})
}

// runIndexCreate initializes a fresh index directory with an empty
// database. An existing database is never overwritten.
func runIndexCreate(args []string) {
	fs := flag.NewFlagSet("index create", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)

	if err := os.MkdirAll(cfg.IndexLocation, 0o755); err != nil {
		log.Fatalf("cannot create index directory: %s", err)
	}
	root, err := filepath.Abs(cfg.IndexLocation)
	if err != nil {
		log.Fatalf("cannot resolve index location: %s", err)
	}
	repo, err := database.Create(&database.Options{Filename: cfg.DatabasePath()},
		version, root)
	if err != nil {
		log.Fatalf("cannot create index: %s", err)
	}
	defer repo.Close()
	fmt.Printf("created index at %s\n", root)
}

// runIndexAdd builds one or more records from filesystem targets and
// commits them.
func runIndexAdd(args []string) {
	fs := flag.NewFlagSet("index add", flag.ExitOnError)
	configFile, indexLocation, verbose := globalFlags(fs)
	contentType := fs.String("type", "", "content type: movie, series or collection")
	auto := fs.Bool("auto", false, "detect the content type")
	name := fs.String("name", "", "record name override")
	description := fs.String("description", "", "record description override")
	dryRun := fs.Bool("dry-run", false, "report without writing")
	batch := fs.Bool("batch", false, "add multiple targets in one run")
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)

	targets := fs.Args()
	if len(targets) == 0 {
		log.Fatal("no targets given")
	}
	if !*batch && len(targets) > 1 {
		log.Fatal("multiple targets require --batch")
	}
	if *batch && (*name != "" || *description != "") {
		log.Fatal("--name and --description apply to a single target, not --batch")
	}

	var parsedType model.ContentType
	if *contentType != "" {
		t, ok := model.ParseContentType(*contentType)
		if !ok {
			log.Fatalf("unknown content type %q", *contentType)
		}
		parsedType = t
	}

	repo := openRepo(cfg)
	defer repo.Close()
	builder := newBuilder(cfg, repo, *verbose)

	ctx := context.Background()
	for _, target := range targets {
		graph, err := builder.Add(ctx, indexer.AddRequest{
			Target:      target,
			Type:        parsedType,
			Auto:        *auto,
			Name:        *name,
			Description: *description,
			DryRun:      *dryRun,
		})
		if err != nil {
			log.Fatalf("add %s: %s", target, err)
		}
		action := "added"
		if *dryRun {
			action = "would add"
		}
		fmt.Printf("%s %s %q (%s): %d seasons, %d videos, %d thumbnails\n",
			action, graph.Record.ID, graph.Record.Name, graph.Record.Type,
			len(graph.Seasons), len(graph.Videos), len(graph.Thumbnails))
	}
}

// runIndexRm removes records by id, cascading over their seasons,
// videos and tracks.
func runIndexRm(args []string) {
	fs := flag.NewFlagSet("index rm", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	dryRun := fs.Bool("dry-run", false, "report without removing")
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)

	if len(fs.Args()) == 0 {
		log.Fatal("no record ids given")
	}

	repo := openRepo(cfg)
	defer repo.Close()
	builder := newBuilder(cfg, repo, false)

	results, err := builder.Remove(context.Background(), fs.Args(), *dryRun)
	if err != nil {
		log.Fatalf("rm: %s", err)
	}
	action := "removed"
	if *dryRun {
		action = "would remove"
	}
	for _, result := range results {
		fmt.Printf("%s %s (%d videos)\n", action, result.RecordID, result.Videos)
	}
}

// runIndexShow lists the records of the index: plain ids by default, a
// table with -v.
func runIndexShow(args []string) {
	fs := flag.NewFlagSet("index show", flag.ExitOnError)
	configFile, indexLocation, verbose := globalFlags(fs)
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)

	repo := openRepo(cfg)
	defer repo.Close()

	list, err := repo.ListRecords(context.Background(), model.ListFilter{})
	if err != nil {
		log.Fatalf("show: %s", err)
	}
	if !*verbose {
		for _, record := range list.Records {
			fmt.Println(record.ID)
		}
		return
	}
	fmt.Printf("%-24s %-12s %s\n", "ID", "TYPE", "NAME")
	for _, record := range list.Records {
		fmt.Printf("%-24s %-12s %s\n", record.ID, record.Type, record.Name)
	}
	fmt.Printf("%d records\n", list.Count)
}

// runIndexGc reclaims thumbnail rows and files nothing references
// anymore.
func runIndexGc(args []string) {
	fs := flag.NewFlagSet("index gc", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	fs.Parse(args)
	cfg := loadConfig(*configFile, *indexLocation)

	repo := openRepo(cfg)
	defer repo.Close()
	builder := newBuilder(cfg, repo, false)

	removed, err := builder.CleanupThumbnails(context.Background())
	if err != nil {
		log.Fatalf("gc: %s", err)
	}
	fmt.Printf("removed %d orphaned thumbnails\n", removed)
}
