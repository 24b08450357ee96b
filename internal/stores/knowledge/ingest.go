package knowledge

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"conversation-orchestrator/internal/common/errors"
	"conversation-orchestrator/internal/models"
)

var ErrEmptyDocument = stderrors.New("EMPTY_DOCUMENT")

// documentNamespace scopes name-based document ids.
var documentNamespace = uuid.MustParse("6f1c1a52-2f0e-4a43-9b9e-4e6f0d7c8a31")

// DocumentID derives a stable id so re-registering the same content
// replaces the earlier copy.
func DocumentID(title, text string) string {
	id := uuid.NewSHA1(documentNamespace, []byte(title+"\x00"+text))
	return "doc_" + strings.ReplaceAll(id.String(), "-", "")[:16]
}

type chunk struct {
	id        string
	index     int
	content   string
	embedding []float32
}

// Register chunks, embeds and stores doc, then indexes the chunks for
// full-text search. The returned copy carries the id and chunk count.
func (s *Store) Register(ctx context.Context, doc *models.Document) (*models.Document, error) {
	pieces := Chunk(doc.Text, s.config.ChunkSize, s.config.ChunkOverlap)
	if len(pieces) == 0 {
		return nil, ErrEmptyDocument
	}

	out := *doc
	if out.ID == "" {
		out.ID = DocumentID(out.Title, out.Text)
	}
	out.Chunks = len(pieces)
	out.CreatedAt = time.Now().UTC()

	chunks := make([]chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = chunk{id: fmt.Sprintf("%s_%d", out.ID, i), index: i, content: p}
	}

	if s.embedder != nil {
		vecs, err := s.embedder.Embed(ctx, pieces)
		if err != nil {
			return nil, errors.NewCollaboratorUnavailableError("embeddings", err)
		}
		for i := range chunks {
			chunks[i].embedding = vecs[i]
		}
	}

	if err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return persist(ctx, tx, &out, chunks)
	}); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("register document", err)
	}

	if err := s.indexChunks(ctx, &out, chunks); err != nil {
		return nil, errors.NewSearchQueryFailedError(s.config.Index, err)
	}

	s.logger.Info("document registered", map[string]interface{}{
		"documentId": out.ID,
		"title":      out.Title,
		"chunks":     out.Chunks,
		"embedded":   s.embedder != nil,
	})
	return &out, nil
}

func persist(ctx context.Context, tx *sql.Tx, doc *models.Document, chunks []chunk) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, document_type, category, source_path, chunks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			document_type = EXCLUDED.document_type,
			category = EXCLUDED.category,
			source_path = EXCLUDED.source_path,
			chunks = EXCLUDED.chunks`,
		doc.ID, doc.Title, doc.Type, doc.Category, doc.SourcePath, doc.Chunks, doc.CreatedAt,
	); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	for _, c := range chunks {
		var embedding interface{}
		if c.embedding != nil {
			embedding = formatVector(c.embedding)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO document_chunks (id, document_id, chunk_index, title, content, embedding)
			VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			c.id, doc.ID, c.index, doc.Title, c.content, embedding,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.index, err)
		}
	}
	return nil
}

func (s *Store) indexChunks(ctx context.Context, doc *models.Document, chunks []chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.IndexConcurrency)

	for _, c := range chunks {
		c := c
		g.Go(func() error {
			body, err := json.Marshal(chunkDoc{
				DocumentID: doc.ID,
				Title:      doc.Title,
				Content:    c.content,
				Category:   doc.Category,
				DocType:    doc.Type,
				ChunkIndex: c.index,
			})
			if err != nil {
				return err
			}
			res, err := esapi.IndexRequest{
				Index:      s.config.Index,
				DocumentID: c.id,
				Body:       bytes.NewReader(body),
			}.Do(gctx, s.es)
			if err != nil {
				return fmt.Errorf("index chunk %s: %w", c.id, err)
			}
			defer res.Body.Close()
			if res.IsError() {
				return fmt.Errorf("index chunk %s: %s", c.id, res.Status())
			}
			return nil
		})
	}
	return g.Wait()
}
