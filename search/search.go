// Package search provides fuzzy title search over catalogue records,
// backed by an in-memory bleve index. The exact substring filtering of
// record listings stays in the store; this index serves the dedicated
// search endpoint.
package search

import (
	"context"
	"strings"

	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/erikbos/flux-server/database/model"
)

// Search is the bleve-based record search index.
type Search struct {
	index bleve.Index
}

// document is what we index per record.
type document struct {
	ID string `json:"id"`
	// NameExact is a helper field to make exact name matches rank first.
	NameExact   string `json:"name_exact"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// New creates a new in-memory index.
func New() (*Search, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Search{index: idx}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "en"
	text.Store = false
	text.Index = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	doc.AddFieldMappingsAt("id", keyword)
	doc.AddFieldMappingsAt("name_exact", keyword)
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("type", keyword)

	m.DefaultMapping = doc
	return m
}

// IndexRecords (re)indexes records in one batch.
func (s *Search) IndexRecords(ctx context.Context, records []model.Record) error {
	batch := s.index.NewBatch()
	for _, record := range records {
		doc := document{
			ID:          record.ID,
			NameExact:   strings.ToLower(record.Name),
			Name:        record.Name,
			Description: record.Description,
			Type:        string(record.Type),
		}
		if err := batch.Index(doc.ID, doc); err != nil {
			return err
		}
		if batch.Size() > 1000 {
			if err := s.index.Batch(batch); err != nil {
				return err
			}
			batch = s.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		return s.index.Batch(batch)
	}
	return nil
}

// Remove drops a record from the index.
func (s *Search) Remove(ctx context.Context, recordID string) error {
	return s.index.Delete(recordID)
}

// Search runs a fuzzy search over record names and descriptions and
// returns matching record ids, best first.
func (s *Search) Search(ctx context.Context, searchTerm string, size int) ([]string, error) {
	searchTerm = strings.ToLower(strings.TrimSpace(searchTerm))
	if searchTerm == "" {
		return nil, nil
	}

	const (
		boostNameExact  = 50.0
		boostNamePhrase = 12.0
		boostNamePrefix = 6.0
		boostNameField  = 3.0
		boostOther      = 1.0
	)

	boolQuery := bleve.NewBooleanQuery()

	termExact := bleve.NewTermQuery(searchTerm)
	termExact.SetField("name_exact")
	termExact.SetBoost(boostNameExact)
	boolQuery.AddShould(termExact)

	matchPhrase := bleve.NewMatchPhraseQuery(searchTerm)
	matchPhrase.SetField("name")
	matchPhrase.SetBoost(boostNamePhrase)
	boolQuery.AddShould(matchPhrase)

	prefixFull := bleve.NewPrefixQuery(searchTerm)
	prefixFull.SetField("name")
	prefixFull.SetBoost(boostNamePrefix)
	boolQuery.AddShould(prefixFull)

	for _, tok := range strings.Fields(searchTerm) {
		fuzz := 1
		if len(tok) >= 6 {
			fuzz = 2
		}
		for _, field := range []string{"name", "description"} {
			fq := bleve.NewFuzzyQuery(tok)
			fq.SetField(field)
			fq.SetFuzziness(fuzz)
			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(field)
			if field == "name" {
				fq.SetBoost(boostNameField)
				pq.SetBoost(boostNameField)
			} else {
				fq.SetBoost(boostOther)
				pq.SetBoost(boostOther)
			}
			boolQuery.AddShould(fq)
			boolQuery.AddShould(pq)
		}
	}

	req := bleve.NewSearchRequestOptions(boolQuery, size, 0, false)
	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
