package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sonata/types"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL  = "https://accounts.spotify.com/api/token"
	spotifySearchURL = "https://api.spotify.com/v1/search"

	lookupTimeout = 15 * time.Second
)

// Catalog is the metadata-search collaborator: title/artist in, canonical
// record out. A miss (including a timed-out request) is types.ErrLookupMiss.
type Catalog interface {
	Lookup(ctx context.Context, title, artist string) (*types.MetadataRecord, error)
}

// Spotify Web API response types, trimmed to the fields the mapper reads

type spotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type spotifyArtist struct {
	Name string `json:"name"`
}

type spotifyAlbum struct {
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []spotifyImage `json:"images"`
}

type spotifyTrack struct {
	Name        string          `json:"name"`
	Artists     []spotifyArtist `json:"artists"`
	Album       spotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	TrackNumber int             `json:"track_number"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []spotifyTrack `json:"items"`
	} `json:"tracks"`
}

type spotifyCatalog struct {
	client  *http.Client
	baseURL string
}

// NewSpotifyCatalog creates a catalog backed by the Spotify Web API using
// the client-credentials grant.
func NewSpotifyCatalog(clientID, clientSecret string) Catalog {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}
	return &spotifyCatalog{
		client:  conf.Client(context.Background()),
		baseURL: spotifySearchURL,
	}
}

// Lookup searches for the best track match. The request is bounded by
// lookupTimeout; a timeout is a miss, never an error the caller must handle
// differently.
func (s *spotifyCatalog) Lookup(ctx context.Context, title, artist string) (*types.MetadataRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	query := title
	if artist != "" {
		query += " artist:" + artist
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Timeouts and transport failures degrade to a miss
		return nil, fmt.Errorf("%w: %v", types.ErrLookupMiss, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: search returned %d", types.ErrLookupMiss, resp.StatusCode)
	}

	var result spotifySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLookupMiss, err)
	}

	if len(result.Tracks.Items) == 0 {
		return nil, types.ErrLookupMiss
	}

	return mapSpotifyTrack(result.Tracks.Items[0]), nil
}

// mapSpotifyTrack converts a Spotify track into the catalog-neutral record
func mapSpotifyTrack(track spotifyTrack) *types.MetadataRecord {
	names := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		names = append(names, a.Name)
	}

	year := track.Album.ReleaseDate
	if len(year) >= 4 {
		year = year[:4]
	}

	artworkURL := ""
	if len(track.Album.Images) > 0 {
		artworkURL = track.Album.Images[0].URL
	}

	return &types.MetadataRecord{
		Title:           track.Name,
		Artist:          strings.Join(names, ", "),
		Album:           track.Album.Name,
		Year:            year,
		TrackNumber:     track.TrackNumber,
		ISRC:            track.ExternalIDs.ISRC,
		CanonicalURL:    track.ExternalURLs.Spotify,
		ArtworkURL:      artworkURL,
		DurationSeconds: float64(track.DurationMS) / 1000.0,
	}
}

// memoizedCatalog caches successful lookups for LookupTTL
type memoizedCatalog struct {
	inner Catalog
	cache LookupCache
}

// NewMemoizedCatalog wraps a catalog with a lookup cache. Only successful
// results are memoized; misses are retried on the next lookup.
func NewMemoizedCatalog(inner Catalog, cache LookupCache) Catalog {
	return &memoizedCatalog{inner: inner, cache: cache}
}

func (m *memoizedCatalog) Lookup(ctx context.Context, title, artist string) (*types.MetadataRecord, error) {
	key := LookupKey(title, artist)
	if record, ok := m.cache.Get(ctx, key); ok {
		return record, nil
	}

	record, err := m.inner.Lookup(ctx, title, artist)
	if err != nil {
		return nil, err
	}

	m.cache.Put(ctx, key, record)
	return record, nil
}
