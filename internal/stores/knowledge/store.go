// Package knowledge is the retrieval store behind the knowledge query and
// data ingestion agents. Chunks live in postgres (with pgvector embeddings)
// and are indexed into elasticsearch for full-text search.
package knowledge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/redis/go-redis/v9"

	"conversation-orchestrator/internal/common/database"
	"conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/common/llm"
	"conversation-orchestrator/internal/common/logger"
	"conversation-orchestrator/internal/models"
)

const cachePrefix = "ai:knowledge:"

type Config struct {
	Index            string
	CacheTTL         time.Duration
	ChunkSize        int
	ChunkOverlap     int
	IndexConcurrency int
}

// Store answers knowledge searches and registers new documents.
type Store struct {
	config   Config
	es       *elasticsearch.Client
	db       *database.PostgresClient
	cache    *redis.Client
	embedder llm.Embedder
	logger   logger.Logger
}

// NewStore wires the store. cache and embedder may be nil: searches then go
// straight to elasticsearch and vector search is unavailable.
func NewStore(cfg Config, es *elasticsearch.Client, db *database.PostgresClient, cache *redis.Client, embedder llm.Embedder, log logger.Logger) *Store {
	if cfg.Index == "" {
		cfg.Index = "knowledge"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 100
	}
	if cfg.IndexConcurrency <= 0 {
		cfg.IndexConcurrency = 4
	}
	return &Store{
		config:   cfg,
		es:       es,
		db:       db,
		cache:    cache,
		embedder: embedder,
		logger:   log.With(map[string]interface{}{"component": "knowledge-store"}),
	}
}

type chunkDoc struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Category   string `json:"category,omitempty"`
	DocType    string `json:"doc_type,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
}

type searchResponse struct {
	Hits struct {
		MaxScore float64 `json:"max_score"`
		Hits     []struct {
			ID     string   `json:"_id"`
			Score  float64  `json:"_score"`
			Source chunkDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs a full-text query and returns at most limit items whose score,
// relative to the best hit, is at least minScore.
func (s *Store) Search(ctx context.Context, query string, limit int, minScore float64) ([]models.KnowledgeItem, error) {
	key := s.cacheKey(query, limit, minScore)
	if s.cache != nil {
		if val, err := s.cache.Get(ctx, key).Result(); err == nil {
			var items []models.KnowledgeItem
			if err := json.Unmarshal([]byte(val), &items); err == nil {
				return items, nil
			}
		}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
		"size": limit,
	})

	res, err := esapi.SearchRequest{
		Index: []string{s.config.Index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, s.es)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(s.config.Index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(s.config.Index, fmt.Errorf("search failed: %s", res.Status()))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, errors.NewSearchQueryFailedError(s.config.Index, err)
	}

	items := make([]models.KnowledgeItem, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		score := 0.0
		if sr.Hits.MaxScore > 0 {
			score = hit.Score / sr.Hits.MaxScore
		}
		if score < minScore {
			continue
		}
		items = append(items, models.KnowledgeItem{
			ID:       hit.ID,
			Title:    hit.Source.Title,
			Content:  hit.Source.Content,
			Score:    score,
			Metadata: chunkMetadata(hit.Source),
		})
		if len(items) == limit {
			break
		}
	}

	if s.cache != nil && len(items) > 0 {
		if data, err := json.Marshal(items); err == nil {
			s.cache.Set(ctx, key, data, s.config.CacheTTL)
		}
	}

	s.logger.Debug("knowledge search", map[string]interface{}{
		"query":   logger.Truncate(query, 120),
		"hits":    len(sr.Hits.Hits),
		"kept":    len(items),
		"minimum": minScore,
	})
	return items, nil
}

// VectorSearch ranks chunks by cosine similarity to the query embedding.
func (s *Store) VectorSearch(ctx context.Context, query string, limit int) ([]models.KnowledgeItem, error) {
	if s.embedder == nil {
		return nil, errors.NewCollaboratorUnavailableError("embeddings", fmt.Errorf("no embedder configured"))
	}

	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, errors.NewCollaboratorUnavailableError("embeddings", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.document_id, c.title, c.content, d.category, d.document_type, c.chunk_index,
		       1 - (c.embedding <=> $1::vector) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
		ORDER BY c.embedding <=> $1::vector
		LIMIT $2`, formatVector(vecs[0]), limit)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("vector search", err)
	}
	defer rows.Close()

	var items []models.KnowledgeItem
	for rows.Next() {
		var (
			item models.KnowledgeItem
			doc  chunkDoc
		)
		if err := rows.Scan(&item.ID, &doc.DocumentID, &item.Title, &item.Content, &doc.Category, &doc.DocType, &doc.ChunkIndex, &item.Score); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("vector search scan", err)
		}
		item.Metadata = chunkMetadata(doc)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("vector search rows", err)
	}
	return items, nil
}

func (s *Store) cacheKey(query string, limit int, minScore float64) string {
	norm := strings.ToLower(strings.Join(strings.Fields(query), " "))
	sum := sha256.Sum256([]byte(norm))
	return fmt.Sprintf("%s%s:%d:%.2f:%s", cachePrefix, s.config.Index, limit, minScore, hex.EncodeToString(sum[:8]))
}

func chunkMetadata(doc chunkDoc) map[string]interface{} {
	md := map[string]interface{}{
		"document_id": doc.DocumentID,
		"chunk_index": doc.ChunkIndex,
	}
	if doc.Category != "" {
		md["category"] = doc.Category
	}
	if doc.DocType != "" {
		md["doc_type"] = doc.DocType
	}
	return md
}

// formatVector renders a pgvector literal.
func formatVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
