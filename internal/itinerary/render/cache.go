package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
	"github.com/tourplanner/tourplanner-backend/internal/platform/logger"
)

const cacheKeyPrefix = "render:"

// CachedRenderer stores rendered documents in redis. Versions are immutable,
// so a key derived from every input never goes stale. Redis failures fall
// back to rendering.
type CachedRenderer struct {
	inner  *Renderer
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewCachedRenderer(inner *Renderer, client *redis.Client, ttl time.Duration, log *logger.Logger) *CachedRenderer {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedRenderer{inner: inner, client: client, ttl: ttl, log: log}
}

func (c *CachedRenderer) Layouts() []string { return c.inner.Layouts() }

func (c *CachedRenderer) Render(ctx context.Context, v domain.Version, layout string, b domain.Branding, format Format) (Document, error) {
	return c.render(ctx, v, layout, b, format, "")
}

func (c *CachedRenderer) RenderPortal(ctx context.Context, v domain.Version, layout string, b domain.Branding, format Format, portalURL string) (Document, error) {
	return c.render(ctx, v, layout, b, format, portalURL)
}

func (c *CachedRenderer) render(ctx context.Context, v domain.Version, layout string, b domain.Branding, format Format, portalURL string) (Document, error) {
	key, err := c.key(v, layout, b, format, portalURL)
	if err != nil {
		return c.inner.render(v, layout, b, format, portalURL)
	}
	log := logger.FromContext(ctx, c.log)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var doc Document
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr == nil {
			return doc, nil
		}
		log.Warn("discarding unreadable cached document", "key", key)
	case !errors.Is(err, redis.Nil):
		log.Warn("render cache read failed", "key", key, "error", err)
	}

	doc, err := c.inner.render(v, layout, b, format, portalURL)
	if err != nil {
		return Document{}, err
	}
	if raw, err := json.Marshal(doc); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			log.Warn("render cache write failed", "key", key, "error", err)
		}
	}
	return doc, nil
}

// key hashes the rendering inputs. The live itinerary fields that change
// without a new version (status, archived) are excluded.
func (c *CachedRenderer) key(v domain.Version, layout string, b domain.Branding, format Format, portalURL string) (string, error) {
	content := v.Content
	content.Status = ""
	content.Archived = false
	content.UpdatedAt = time.Time{}
	payload, err := json.Marshal(struct {
		ItineraryID string
		Number      int
		Content     domain.Itinerary
		Pricing     domain.PricingSnapshot
		CreatedAt   time.Time
		Layout      string
		Branding    domain.Branding
		Format      Format
		Portal      string
	}{v.ItineraryID, v.Number, content, v.Pricing, v.CreatedAt, layout, ResolveBranding(b), format, portalURL})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%s%s:%d:%s", cacheKeyPrefix, v.ItineraryID, v.Number, hex.EncodeToString(sum[:])), nil
}
