// Package events moves recipe lifecycle events through the message broker
// and reacts to them out of band.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/recipevault/apiserver/internal/logging"
	"github.com/recipevault/apiserver/internal/mq"
	"github.com/recipevault/apiserver/internal/services"
	"github.com/recipevault/apiserver/types"
)

// Channel is the broker queue/topic that carries recipe events.
const Channel = "recipe-events"

// Publisher sends recipe events to the broker as JSON.
type Publisher struct {
	queue *mq.MQ
	log   logging.Logger
}

var _ services.EventPublisher = (*Publisher)(nil)

func NewPublisher(queue *mq.MQ, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.Nop()
	}
	return &Publisher{queue: queue, log: log}
}

func (p *Publisher) Publish(ctx context.Context, event types.RecipeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	id, err := p.queue.Publish(ctx, Channel, data, map[string]string{
		"type":      string(event.Type),
		"recipe_id": strconv.FormatInt(event.RecipeID, 10),
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	p.log.Debug(ctx, "recipe event published", "type", string(event.Type), "recipe_id", event.RecipeID, "message_id", id)
	return nil
}

// ImageRemover deletes a stored image by its public URL.
type ImageRemover interface {
	Delete(ctx context.Context, imageURL string) error
}

// ImageCleaner deletes images that a recipe change stopped referencing.
type ImageCleaner struct {
	images ImageRemover
	log    logging.Logger
}

func NewImageCleaner(images ImageRemover, log logging.Logger) *ImageCleaner {
	if log == nil {
		log = logging.Nop()
	}
	return &ImageCleaner{images: images, log: log}
}

// Run consumes recipe events until ctx is cancelled.
func (c *ImageCleaner) Run(ctx context.Context, queue *mq.MQ) error {
	c.log.Info(ctx, "image cleaner started", "channel", Channel)
	err := queue.Subscribe(ctx, Channel, c.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one message. Malformed payloads and URLs outside the
// configured storage are acknowledged and skipped; storage failures are
// returned so the broker redelivers.
func (c *ImageCleaner) Handle(ctx context.Context, msg mq.Message) error {
	var event types.RecipeEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.log.Warn(ctx, "dropping malformed recipe event", "message_id", msg.ID, "error", err)
		return nil
	}

	imageURL := event.OrphanedImage()
	if imageURL == "" {
		return nil
	}

	err := c.images.Delete(ctx, imageURL)
	var invalid *services.InvalidInputError
	switch {
	case err == nil:
		c.log.Info(ctx, "orphaned image deleted", "recipe_id", event.RecipeID, "image_url", imageURL)
		return nil
	case errors.As(err, &invalid):
		c.log.Debug(ctx, "skipping foreign image", "recipe_id", event.RecipeID, "image_url", imageURL)
		return nil
	default:
		return fmt.Errorf("clean image of recipe %d: %w", event.RecipeID, err)
	}
}
