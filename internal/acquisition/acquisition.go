package acquisition

import (
	"context"
	"fmt"
	"log/slog"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

// Request carries everything a source needs to list one persona's content.
type Request struct {
	PersonaID int64
	SourceURL string
	MaxItems  int
}

// Source captures one platform strategy (YouTube channel, Twitter profile, ...).
type Source interface {
	Platform() domain.Platform
	Discover(ctx context.Context, req Request) ([]domain.Discovered, error)
}

// Registry keeps a mapping from platforms to their source implementations.
type Registry struct {
	sources map[domain.Platform]Source
	logger  *slog.Logger
}

// NewRegistry builds an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{sources: map[domain.Platform]Source{}, logger: logger}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source Source) {
	if r.sources == nil {
		r.sources = map[domain.Platform]Source{}
	}
	r.sources[source.Platform()] = source
}

// Resolve returns the source for a platform or an error if it is absent.
func (r *Registry) Resolve(platform domain.Platform) (Source, error) {
	if source, ok := r.sources[platform]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("no source registered for platform %s", platform)
}

// Discover lists the persona's current content on every platform it covers.
// A persona on twitter or both without a twitter URL simply skips the profile.
func (r *Registry) Discover(ctx context.Context, persona domain.Persona) ([]domain.Discovered, error) {
	var aggregated []domain.Discovered

	if persona.Platform.IncludesYouTube() {
		results, err := r.discover(ctx, domain.PlatformYouTube, Request{
			PersonaID: persona.ID,
			SourceURL: persona.SourceURL,
			MaxItems:  persona.MaxVideos,
		})
		if err != nil {
			return nil, err
		}
		aggregated = append(aggregated, results...)
	}

	if persona.Platform.IncludesTwitter() {
		profileURL := persona.TwitterURL
		if profileURL == "" && persona.Platform == domain.PlatformTwitter {
			profileURL = persona.SourceURL
		}
		if profileURL != "" {
			results, err := r.discover(ctx, domain.PlatformTwitter, Request{
				PersonaID: persona.ID,
				SourceURL: profileURL,
			})
			if err != nil {
				return nil, err
			}
			aggregated = append(aggregated, results...)
		}
	}

	r.debug("acquisition done", "persona_id", persona.ID, "total", len(aggregated))
	return aggregated, nil
}

func (r *Registry) discover(ctx context.Context, platform domain.Platform, req Request) ([]domain.Discovered, error) {
	source, err := r.Resolve(platform)
	if err != nil {
		return nil, err
	}
	results, err := source.Discover(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", platform, err)
	}
	r.debug("platform listed", "platform", platform, "count", len(results))
	return results, nil
}

func (r *Registry) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// ChannelSource adapts a ChannelLister into the youtube strategy.
type ChannelSource struct {
	Lister ports.ChannelLister
}

// Platform identifies the strategy inside the registry.
func (ChannelSource) Platform() domain.Platform { return domain.PlatformYouTube }

// Discover lists the channel and tags every unit as a video.
func (s ChannelSource) Discover(ctx context.Context, req Request) ([]domain.Discovered, error) {
	videos, err := s.Lister.ListChannel(ctx, req.SourceURL, req.MaxItems)
	if err != nil {
		return nil, err
	}
	for i := range videos {
		videos[i].ContentType = domain.ContentYouTubeVideo
	}
	return videos, nil
}

// ProfileSource adapts a ProfileLister into the twitter strategy.
type ProfileSource struct {
	Lister ports.ProfileLister
}

// Platform identifies the strategy inside the registry.
func (ProfileSource) Platform() domain.Platform { return domain.PlatformTwitter }

// Discover lists the profile and tags every unit as a tweet.
func (s ProfileSource) Discover(ctx context.Context, req Request) ([]domain.Discovered, error) {
	posts, err := s.Lister.ListProfile(ctx, req.SourceURL)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].ContentType = domain.ContentTweet
	}
	return posts, nil
}
