// internal/app/infra.go
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"conversation-orchestrator/internal/common/aws"
	"conversation-orchestrator/internal/common/config"
	"conversation-orchestrator/internal/common/database"
	"conversation-orchestrator/internal/common/logger"
	evaluateescalation "conversation-orchestrator/internal/workers/ai-conversation/evaluate-escalation"
)

// Infra holds the connections the orchestrator needs before any agent is built.
type Infra struct {
	Postgres *database.PostgresClient
	Elastic  *database.ElasticsearchClient
	Redis    *database.RedisClient
	Blobs    *aws.BlobReader
	// Notifier is nil when no operator channel is enabled.
	Notifier evaluateescalation.Notifier
}

// Connect opens postgres, elasticsearch and redis with retries, prepares the
// schema and index, and loads the AWS clients.
func Connect(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (*Infra, error) {
	infra := &Infra{}
	ok := false
	defer func() {
		if !ok {
			infra.Close()
		}
	}()

	err := RetryWithBackoff(ctx, func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			pg.Close()
			return err
		}
		infra.Postgres = pg
		return nil
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("PostgreSQL connected successfully")

	if err := infra.Postgres.Migrate(ctx, cfg.LLM.EmbeddingDims); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}

	err = RetryWithBackoff(ctx, func() error {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		if err := es.Ping(); err != nil {
			return err
		}
		infra.Elastic = es
		return nil
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("Elasticsearch connected successfully")

	if err := infra.Elastic.EnsureIndex(ctx, cfg.Database.Elasticsearch.Index, database.KnowledgeIndexMapping); err != nil {
		return nil, fmt.Errorf("ensure knowledge index: %w", err)
	}

	err = RetryWithBackoff(ctx, func() error {
		rdb, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		if err := rdb.Ping(ctx); err != nil {
			rdb.Close()
			return err
		}
		infra.Redis = rdb
		return nil
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		return nil, err
	}
	zapLog.Info("Redis connected successfully")

	infra.Blobs, err = aws.NewBlobReader(ctx, cfg.AWS.Region, cfg.AWS.LocalDocumentRoot, cfg.AWS.MaxDocumentBytes)
	if err != nil {
		return nil, fmt.Errorf("document reader: %w", err)
	}

	notify := cfg.Escalation.Notify
	if notify.Email.Enabled || notify.SNS.Enabled {
		notifier, err := aws.NewEscalationNotifier(ctx, cfg.AWS.Region, aws.NotifierConfig{
			EmailEnabled: notify.Email.Enabled,
			FromEmail:    notify.Email.FromEmail,
			To:           notify.Email.To,
			SNSEnabled:   notify.SNS.Enabled,
			TopicARN:     notify.SNS.TopicARN,
		}, logger.NewZapAdapter(zapLog))
		if err != nil {
			return nil, fmt.Errorf("escalation notifier: %w", err)
		}
		infra.Notifier = notifier
	}

	ok = true
	return infra, nil
}

// Close releases the database handles. It is safe on a partially built Infra.
func (i *Infra) Close() {
	if i.Postgres != nil {
		i.Postgres.Close()
	}
	if i.Redis != nil {
		i.Redis.Close()
	}
}
