package services

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sonata/types"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"
)

// fallbackAlbum marks files tagged from locally-derived metadata instead of
// a catalog match
const fallbackAlbum = "YouTube"

// EnrichmentResult reports what the enricher managed to do. Enrichment
// never fails a job; partial outcomes are normal.
type EnrichmentResult struct {
	Record          *types.MetadataRecord
	Accepted        bool
	Tagged          bool
	ArtworkEmbedded bool
}

// MetadataEnricher looks up catalog metadata for a downloaded file,
// validates the match and rewrites the file's tags and artwork.
type MetadataEnricher interface {
	Enrich(ctx context.Context, filePath, candidateTitle, candidateArtist, sourceURL string) EnrichmentResult
}

type metadataEnricher struct {
	catalog    Catalog
	transcoder Transcoder
	artwork    ArtworkFetcher
	logger     *log.Logger
}

// NewMetadataEnricher creates the enricher
func NewMetadataEnricher(catalog Catalog, transcoder Transcoder, artwork ArtworkFetcher, logger *log.Logger) MetadataEnricher {
	return &metadataEnricher{
		catalog:    catalog,
		transcoder: transcoder,
		artwork:    artwork,
		logger:     logger,
	}
}

// Enrich runs lookup, validation, tagging and artwork embedding. On lookup
// miss or rejected match it falls back to locally-derived metadata with the
// source platform's thumbnail. Transcode failures leave the file in its
// last-good state.
func (e *metadataEnricher) Enrich(ctx context.Context, filePath, candidateTitle, candidateArtist, sourceURL string) EnrichmentResult {
	if strings.TrimSpace(candidateTitle) == "" {
		candidateTitle, candidateArtist = localCandidates(filePath, candidateArtist)
	}

	result := EnrichmentResult{}
	artworkURL := ""

	record, err := e.catalog.Lookup(ctx, candidateTitle, candidateArtist)
	switch {
	case err != nil:
		if !errors.Is(err, types.ErrLookupMiss) {
			e.logger.Warn("catalog lookup failed, using fallback metadata", "title", candidateTitle, "err", err)
		}
		record = nil
	case !AcceptMatch(candidateTitle, candidateArtist, record):
		e.logger.Info("catalog match rejected",
			"search", candidateTitle, "candidate", record.Title)
		record = nil
	}

	if record != nil {
		result.Accepted = true
		artworkURL = record.ArtworkURL
	} else {
		record = &types.MetadataRecord{
			Title:        candidateTitle,
			Artist:       candidateArtist,
			Album:        fallbackAlbum,
			CanonicalURL: sourceURL,
		}
		artworkURL = thumbnailURL(sourceURL)
	}
	result.Record = record

	artworkPath := ""
	if artworkURL != "" {
		artworkPath, err = e.artwork.Fetch(ctx, artworkURL, filepath.Dir(filePath))
		if err != nil {
			e.logger.Warn("artwork fetch failed, tagging without cover", "err", err)
			artworkPath = ""
		}
	}

	// Pass 1: tags
	if err := e.transcodePass(filePath, func(staged string) error {
		return e.transcoder.WriteTags(ctx, filePath, staged, *record)
	}); err != nil {
		e.logger.Warn("tag write failed, file left untagged", "file", filePath, "err", err)
		return result
	}
	result.Tagged = true

	// Pass 2: artwork
	if artworkPath != "" {
		if err := e.transcodePass(filePath, func(staged string) error {
			return e.transcoder.EmbedArtwork(ctx, filePath, staged, artworkPath)
		}); err != nil {
			e.logger.Warn("artwork embed failed, keeping tagged file", "file", filePath, "err", err)
			return result
		}
		result.ArtworkEmbedded = true
	}

	return result
}

// transcodePass stages a temp output, runs the transcode into it and
// atomically replaces the original on success. The staged file is removed
// on every failure path.
func (e *metadataEnricher) transcodePass(filePath string, run func(staged string) error) error {
	staged, err := StageTemp(filePath)
	if err != nil {
		return err
	}
	defer staged.Discard()

	if err := run(staged.Path); err != nil {
		return err
	}
	return staged.Commit()
}

// localCandidates derives title/artist from the file's existing tags,
// falling back to "Artist - Title" filename parsing.
func localCandidates(filePath, artistHint string) (string, string) {
	if f, err := os.Open(filePath); err == nil {
		defer f.Close()
		if meta, err := tag.ReadFrom(f); err == nil {
			title := strings.TrimSpace(meta.Title())
			artist := strings.TrimSpace(meta.Artist())
			if artist == "" {
				artist = artistHint
			}
			if title != "" {
				return title, artist
			}
		}
	}

	base := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	if parts := strings.SplitN(base, " - ", 2); len(parts) == 2 {
		artist := strings.TrimSpace(parts[0])
		if artistHint != "" {
			artist = artistHint
		}
		return strings.TrimSpace(parts[1]), artist
	}
	return base, artistHint
}

// thumbnailURL derives the source platform's thumbnail from the video id in
// the request URL. Returns "" when no id can be parsed.
func thumbnailURL(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}

	videoID := ""
	switch {
	case u.Query().Get("v") != "":
		videoID = u.Query().Get("v")
	case strings.Contains(u.Host, "youtu.be"):
		videoID = strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		videoID = strings.TrimPrefix(u.Path, "/shorts/")
		videoID = strings.Trim(videoID, "/")
	}

	if videoID == "" {
		return ""
	}
	return "https://i.ytimg.com/vi/" + videoID + "/hqdefault.jpg"
}
