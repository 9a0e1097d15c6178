package interfaces

import (
	"context"

	"github.com/ternarybob/ditare/internal/models"
)

// VideoSearcher finds candidate videos for a service name
type VideoSearcher interface {
	Search(ctx context.Context, query string) ([]models.Video, error)
}
