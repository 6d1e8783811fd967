// Package vectorstore indexes evidence content in an embedded chromem-go
// database, one collection per workspace. chromem persists to disk and
// needs no external service.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("discoveryd/vectorstore")

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates an Add call with nothing to add.
	ErrEmptyDocuments = errors.New("no documents to add")

	// ErrNotIndexed indicates the referenced document is not in the index.
	ErrNotIndexed = errors.New("document not indexed")
)

// Config holds configuration for the evidence index.
type Config struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/discoveryd/vectorstore"
	}
}

// Embedder generates one embedding per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is an evidence item to index.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Match is a similarity search hit.
type Match struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float64
}

// Index stores and searches evidence embeddings.
type Index struct {
	db       *chromem.DB
	embedder Embedder
	logger   *zap.Logger
}

// NewIndex opens (or creates) the persistent index at the configured path.
func NewIndex(config Config, embedder Embedder, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("evidence index opened",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
	)

	return &Index{db: db, embedder: embedder, logger: logger.Named("vectorstore")}, nil
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func collectionName(workspaceID string) string {
	return "evidence_" + workspaceID
}

func (x *Index) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := x.embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vectors[0], nil
	}
}

// Add indexes documents into the workspace's collection. Embeddings are
// generated in one batch.
func (x *Index) Add(ctx context.Context, workspaceID string, docs []Document) error {
	ctx, span := tracer.Start(ctx, "Index.Add")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace_id", workspaceID),
		attribute.Int("document_count", len(docs)),
	)

	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	collection, err := x.db.GetOrCreateCollection(collectionName(workspaceID), nil, x.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("getting/creating collection: %w", err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("embedding documents: %w", err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	x.logger.Debug("indexed evidence",
		zap.String("workspace_id", workspaceID),
		zap.Int("count", len(docs)),
	)
	return nil
}

// SearchText finds evidence similar to a free-text query, keeping only
// hits at or above minSimilarity.
func (x *Index) SearchText(ctx context.Context, workspaceID, query string, limit int, minSimilarity float64) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "Index.SearchText")
	defer span.End()
	span.SetAttributes(attribute.String("workspace_id", workspaceID), attribute.Int("limit", limit))

	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	collection := x.db.GetCollection(collectionName(workspaceID), x.embeddingFunc())
	if collection == nil {
		return nil, nil
	}
	count := collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	results, err := collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	matches := toMatches(results, "", minSimilarity)
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	return matches, nil
}

// SearchLike finds evidence similar to an already-indexed document,
// excluding the document itself.
func (x *Index) SearchLike(ctx context.Context, workspaceID, evidenceID string, limit int, minSimilarity float64) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "Index.SearchLike")
	defer span.End()
	span.SetAttributes(
		attribute.String("workspace_id", workspaceID),
		attribute.String("evidence_id", evidenceID),
	)

	collection := x.db.GetCollection(collectionName(workspaceID), x.embeddingFunc())
	if collection == nil {
		return nil, nil
	}
	count := collection.Count()
	if count < 2 {
		return nil, nil
	}

	doc, err := collection.GetByID(ctx, evidenceID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, evidenceID)
	}

	k := limit + 1 // the subject comes back as its own best match
	if k > count {
		k = count
	}
	results, err := collection.QueryEmbedding(ctx, doc.Embedding, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	matches := toMatches(results, evidenceID, minSimilarity)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	span.SetAttributes(attribute.Int("results_count", len(matches)))
	return matches, nil
}

// Delete removes documents from the workspace's collection.
func (x *Index) Delete(ctx context.Context, workspaceID string, ids ...string) error {
	collection := x.db.GetCollection(collectionName(workspaceID), x.embeddingFunc())
	if collection == nil || len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		if err := collection.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("deleting document %s: %w", id, err)
		}
	}
	return nil
}

func toMatches(results []chromem.Result, excludeID string, minSimilarity float64) []Match {
	var matches []Match
	for _, r := range results {
		if r.ID == excludeID || float64(r.Similarity) < minSimilarity {
			continue
		}
		matches = append(matches, Match{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: float64(r.Similarity),
		})
	}
	return matches
}
