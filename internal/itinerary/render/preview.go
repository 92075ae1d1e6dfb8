package render

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

// DocumentRenderer is satisfied by Renderer and CachedRenderer.
type DocumentRenderer interface {
	Layouts() []string
	Render(ctx context.Context, v domain.Version, layout string, b domain.Branding, format Format) (Document, error)
	RenderPortal(ctx context.Context, v domain.Version, layout string, b domain.Branding, format Format, portalURL string) (Document, error)
}

// RenderAll renders v in every registered layout concurrently. Results are
// in Layouts() order.
func RenderAll(ctx context.Context, r DocumentRenderer, v domain.Version, b domain.Branding, format Format) ([]Document, error) {
	layouts := r.Layouts()
	docs := make([]Document, len(layouts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, name := range layouts {
		g.Go(func() error {
			doc, err := r.Render(gctx, v, name, b, format)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
