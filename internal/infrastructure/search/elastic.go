package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/guisedstore/storefront/internal/models"
)

const productIndex = "products"

const productMapping = `{
	"mappings": {
		"properties": {
			"name":        { "type": "text" },
			"description": { "type": "text" },
			"price":       { "type": "float" },
			"status":      { "type": "keyword" },
			"category_id": { "type": "keyword" },
			"category":    { "type": "keyword" },
			"updated_at":  { "type": "date" }
		}
	}
}`

type Hit struct {
	models.SearchDocument
	Score float64 `json:"score"`
}

// Index is the search side of the catalog: a disposable projection that can
// be rebuilt at any time from the relational store.
type Index interface {
	IndexProduct(ctx context.Context, doc models.SearchDocument) error
	DeleteProduct(ctx context.Context, productID string) error
	Search(ctx context.Context, query string, limit int) ([]Hit, int, error)
	Resync(ctx context.Context, docs []models.SearchDocument) error
}

type ElasticIndex struct {
	client *elasticsearch.Client
}

func NewElasticIndex(addresses []string) (*ElasticIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return &ElasticIndex{client: client}, nil
}

func (e *ElasticIndex) IndexProduct(ctx context.Context, doc models.SearchDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal search document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      productIndex,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to index product %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("failed to index product %s: %s", doc.ID, res.Status())
	}

	slog.Info("product indexed", "product_id", doc.ID)
	return nil
}

func (e *ElasticIndex) DeleteProduct(ctx context.Context, productID string) error {
	req := esapi.DeleteRequest{
		Index:      productIndex,
		DocumentID: productID,
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to delete product %s from index: %w", productID, err)
	}
	defer res.Body.Close()
	// already gone counts as deleted
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("failed to delete product %s from index: %s", productID, res.Status())
	}

	slog.Info("product removed from index", "product_id", productID)
	return nil
}

func (e *ElasticIndex) Search(ctx context.Context, query string, limit int) ([]Hit, int, error) {
	if limit < 1 {
		limit = 10
	}

	searchBody := map[string]any{
		"size": limit,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name", "description"},
				"fuzziness": "AUTO",
			},
		},
	}
	body, err := json.Marshal(searchBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(productIndex),
		e.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, 0, fmt.Errorf("search failed: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64               `json:"_score"`
				Source models.SearchDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, Hit{SearchDocument: h.Source, Score: h.Score})
	}
	return hits, parsed.Hits.Total.Value, nil
}

// Resync drops and recreates the index, then bulk-indexes every document.
// Invoked at startup to heal drift accumulated while the consumer was
// offline.
func (e *ElasticIndex) Resync(ctx context.Context, docs []models.SearchDocument) error {
	exists, err := esapi.IndicesExistsRequest{Index: []string{productIndex}}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	io.Copy(io.Discard, exists.Body)
	exists.Body.Close()

	if exists.StatusCode == 200 {
		del, err := esapi.IndicesDeleteRequest{Index: []string{productIndex}}.Do(ctx, e.client)
		if err != nil {
			return fmt.Errorf("failed to delete index: %w", err)
		}
		del.Body.Close()
		if del.IsError() {
			return fmt.Errorf("failed to delete index: %s", del.Status())
		}
	}

	create, err := esapi.IndicesCreateRequest{
		Index: productIndex,
		Body:  strings.NewReader(productMapping),
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer create.Body.Close()
	if create.IsError() {
		return fmt.Errorf("failed to create index: %s", create.Status())
	}

	if len(docs) == 0 {
		slog.Info("index resync complete", "documents", 0)
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta := fmt.Sprintf(`{"index":{"_index":%q,"_id":%q}}`, productIndex, doc.ID)
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal search document: %w", err)
		}
		buf.WriteString(meta)
		buf.WriteByte('\n')
		buf.Write(body)
		buf.WriteByte('\n')
	}

	bulk, err := esapi.BulkRequest{
		Body:    bytes.NewReader(buf.Bytes()),
		Refresh: "true",
	}.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}
	defer bulk.Body.Close()
	if bulk.IsError() {
		return fmt.Errorf("bulk index failed: %s", bulk.Status())
	}

	var bulkRes struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(bulk.Body).Decode(&bulkRes); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkRes.Errors {
		return fmt.Errorf("bulk index reported per-document errors")
	}

	slog.Info("index resync complete", "documents", len(docs))
	return nil
}
