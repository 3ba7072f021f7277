package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/guisedstore/storefront/internal/infrastructure/observability"
	"github.com/guisedstore/storefront/internal/infrastructure/search"
	"github.com/guisedstore/storefront/internal/models"
	"github.com/guisedstore/storefront/internal/repository"
	pkgerrors "github.com/guisedstore/storefront/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
)

const indexSyncBackoff = 5 * time.Second

// IndexSyncWorker keeps the search index eventually consistent with the
// products table. It re-reads the product at consume time instead of
// trusting the message payload, so a burst of queued updates converges on
// the latest state.
type IndexSyncWorker struct {
	reader      MessageReader
	productRepo repository.ProductRepository
	index       search.Index

	// pause between fetch attempts while the broker is unreachable
	fetchBackoff time.Duration
}

func NewIndexSyncWorker(reader MessageReader, productRepo repository.ProductRepository, index search.Index) *IndexSyncWorker {
	return &IndexSyncWorker{reader: reader, productRepo: productRepo, index: index, fetchBackoff: indexSyncBackoff}
}

func (w *IndexSyncWorker) Run(ctx context.Context) {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, io.EOF) {
				return
			}
			slog.Error("failed to fetch index sync message", "error", err)
			time.Sleep(w.fetchBackoff)
			continue
		}

		var payload models.IndexSyncMessage
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			slog.Error("malformed index sync message", "value", string(msg.Value), "error", err)
			w.commit(ctx, msg)
			continue
		}

		// Retried until it succeeds; the index is a projection, so holding
		// the queue is preferable to dropping an update.
		for {
			err = w.Handle(ctx, payload)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			slog.Error("index sync failed, retrying", "action", payload.Action, "product_id", payload.ProductID, "error", err)
			observability.IndexSyncProcessed.WithLabelValues(payload.Action, "retry").Inc()
			time.Sleep(indexSyncBackoff)
		}
		observability.IndexSyncProcessed.WithLabelValues(payload.Action, "ok").Inc()

		w.commit(ctx, msg)
	}
}

func (w *IndexSyncWorker) commit(ctx context.Context, msg kafkago.Message) {
	if err := w.reader.CommitMessages(ctx, msg); err != nil {
		slog.Error("failed to commit index sync message", "error", err)
	}
}

func (w *IndexSyncWorker) Close() error {
	return w.reader.Close()
}

func (w *IndexSyncWorker) Handle(ctx context.Context, msg models.IndexSyncMessage) error {
	switch msg.Action {
	case models.IndexActionIndex, models.IndexActionUpdate:
		product, err := w.productRepo.GetByID(ctx, msg.ProductID)
		if stderrors.Is(err, pkgerrors.ErrProductNotFound) {
			// deleted between enqueue and consume; the delete message will
			// clean the index
			slog.Info("product gone before index sync", "product_id", msg.ProductID)
			return nil
		}
		if err != nil {
			return err
		}
		return w.index.IndexProduct(ctx, search.DocumentFromProduct(product))

	case models.IndexActionDelete:
		return w.index.DeleteProduct(ctx, msg.ProductID)

	default:
		slog.Warn("unknown index sync action", "action", msg.Action)
		return nil
	}
}

// Resync rebuilds the whole index from the relational store. Run at startup
// to heal whatever drift accumulated while the consumer was offline.
func (w *IndexSyncWorker) Resync(ctx context.Context) error {
	products, err := w.productRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products for resync: %w", err)
	}

	docs := make([]models.SearchDocument, 0, len(products))
	for i := range products {
		docs = append(docs, search.DocumentFromProduct(&products[i]))
	}
	return w.index.Resync(ctx, docs)
}
