package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	flag "github.com/spf13/pflag"

	"github.com/erikbos/flux-server/database"
	"github.com/erikbos/flux-server/database/model"
	"github.com/erikbos/flux-server/fluxapi"
	"github.com/erikbos/flux-server/search"
)

// runServe opens the index, applies pending migrations, builds the
// search index and serves the API.
func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFile, indexLocation, _ := globalFlags(fs)
	listen := fs.String("listen", "", "listen address, overrides config")
	fs.Parse(args)

	cfg := loadConfig(*configFile, *indexLocation)

	repo, err := database.New(&database.Options{Filename: cfg.DatabasePath()})
	if err != nil {
		log.Fatalf("cannot open index: %s", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.Migrate(ctx, version); err != nil {
		log.Fatalf("schema migration failed: %s", err)
	}

	searcher, err := buildSearchIndex(ctx, repo)
	if err != nil {
		log.Fatalf("cannot build search index: %s", err)
	}

	r := mux.NewRouter()
	api := fluxapi.New(&fluxapi.Options{
		Repo:   repo,
		Search: searcher,
		Config: cfg,
	})
	api.RegisterHandlers(r)

	addr := *listen
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	}

	if cfg.Listen.TLSCert != "" && cfg.Listen.TLSKey != "" {
		reloader, err := newCertReloader(cfg.Listen.TLSCert, cfg.Listen.TLSKey)
		if err != nil {
			log.Fatalf("cannot load TLS keypair: %s", err)
		}
		srv := &http.Server{
			Addr:    addr,
			Handler: HttpLog(r),
			TLSConfig: &tls.Config{
				MinVersion:     tls.VersionTLS13,
				GetCertificate: reloader.getCertificate,
			},
		}
		log.Printf("serving HTTPS on %s", addr)
		log.Fatal(srv.ListenAndServeTLS("", ""))
	}
	log.Printf("serving HTTP on %s", addr)
	log.Fatal(http.ListenAndServe(addr, HttpLog(r)))
}

// buildSearchIndex loads all records into a fresh in-memory search
// index at startup.
func buildSearchIndex(ctx context.Context, repo database.Repository) (*search.Search, error) {
	searcher, err := search.New()
	if err != nil {
		return nil, err
	}
	list, err := repo.ListRecords(ctx, model.ListFilter{})
	if err != nil {
		return nil, err
	}
	if err := searcher.IndexRecords(ctx, list.Records); err != nil {
		return nil, err
	}
	log.Printf("search index ready, %d records", list.Count)
	return searcher, nil
}
