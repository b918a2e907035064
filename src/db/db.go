package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"herd/src/apperrors"
	"herd/src/types"

	"github.com/olivere/elastic/v7"
	"github.com/rs/zerolog"
)

//go:embed mapping.json
var postsMapping string

type ElasticStore struct {
	Client *elastic.Client
	URL    string
	Index  string
	logger zerolog.Logger
}

// NewElasticStore connects to url; the startup healthcheck gives up when ctx is done.
func NewElasticStore(ctx context.Context, url, index string, logger zerolog.Logger, options ...elastic.ClientOptionFunc) (*ElasticStore, error) {
	opts := append([]elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false),
	}, options...)

	client, err := elastic.DialContext(ctx, opts...)
	if err != nil {
		return nil, apperrors.StoreUnavailable("post store is unavailable").
			Wrap(err).
			WithInternal("creating elastic client for %s", url)
	}

	return &ElasticStore{
		Client: client,
		URL:    url,
		Index:  index,
		logger: logger.With().Str("store", "elastic").Str("index", index).Logger(),
	}, nil
}

func (es *ElasticStore) RecentPosts(ctx context.Context, limit int) ([]types.Post, error) {
	searchResult, err := es.Client.Search().
		Index(es.Index).
		Query(elastic.NewMatchAllQuery()).
		SortBy(newestFirst()...).
		Size(limit).
		Do(ctx)
	if err != nil {
		return nil, unavailable(err, "searching recent posts in %s", es.Index)
	}

	return es.decodeHits(searchResult), nil
}

func (es *ElasticStore) GetPosts(ctx context.Context, limit, offset int) ([]types.Post, int, error) {
	searchResult, err := es.Client.Search().
		Index(es.Index).
		Query(elastic.NewMatchAllQuery()).
		SortBy(newestFirst()...).
		Size(limit).
		From(offset).
		Do(ctx)
	if err != nil {
		return nil, 0, unavailable(err, "listing posts in %s", es.Index)
	}

	posts := es.decodeHits(searchResult)

	count, err := es.Client.Count().Index(es.Index).Do(ctx)
	if err != nil {
		return nil, 0, unavailable(err, "counting posts in %s", es.Index)
	}

	return posts, int(count), nil
}

func (es *ElasticStore) Ping(ctx context.Context) error {
	if _, _, err := es.Client.Ping(es.URL).Do(ctx); err != nil {
		return unavailable(err, "pinging %s", es.URL)
	}
	return nil
}

// decodeHits skips documents whose source does not decode into a Post.
func (es *ElasticStore) decodeHits(searchResult *elastic.SearchResult) []types.Post {
	if searchResult.Hits == nil {
		return []types.Post{}
	}
	posts := make([]types.Post, 0, len(searchResult.Hits.Hits))
	for _, hit := range searchResult.Hits.Hits {
		var post types.Post
		if err := json.Unmarshal(hit.Source, &post); err != nil {
			es.logger.Warn().Err(err).Str("id", hit.Id).Msg("Skipping undecodable post document")
			continue
		}
		if post.ID == "" {
			post.ID = hit.Id
		}
		posts = append(posts, post)
	}
	return posts
}

func (es *ElasticStore) EnsureSchema(ctx context.Context) error {
	exists, err := es.Client.IndexExists(es.Index).Do(ctx)
	if err != nil {
		return unavailable(err, "checking index %s", es.Index)
	}
	if exists {
		es.logger.Debug().Msg("Index already exists")
		return nil
	}

	createIndex, err := es.Client.CreateIndex(es.Index).BodyString(postsMapping).Do(ctx)
	if err != nil {
		return unavailable(err, "creating index %s", es.Index)
	}
	if !createIndex.Acknowledged {
		es.logger.Warn().Msg("CreateIndex was not acknowledged. Check that timeout value is correct.")
	}

	settings := map[string]interface{}{
		"index": map[string]interface{}{
			"max_result_window": types.MaxListWindow,
		},
	}
	if err := es.updateIndexSettings(ctx, settings); err != nil {
		return err
	}

	es.logger.Info().Msg("Index created")
	return nil
}

func (es *ElasticStore) SavePosts(ctx context.Context, posts []types.Post) error {
	if len(posts) == 0 {
		return nil
	}

	bulkRequest := es.Client.Bulk()
	for _, post := range posts {
		req := elastic.NewBulkIndexRequest().Index(es.Index).Id(post.ID).Doc(post)
		bulkRequest = bulkRequest.Add(req)
	}

	bulkResponse, err := bulkRequest.Do(ctx)
	if err != nil {
		return unavailable(err, "bulk indexing %d posts", len(posts))
	}

	failed := bulkResponse.Failed()
	for _, item := range failed {
		reason := "unknown"
		if item.Error != nil {
			reason = item.Error.Reason
		}
		es.logger.Error().Str("id", item.Id).Str("reason", reason).Msg("Failed to index post")
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d posts failed to index", len(failed), len(posts))
	}

	es.logger.Info().Int("count", len(posts)).Msg("Posts indexed")
	return nil
}

func (es *ElasticStore) Close() {
	es.Client.Stop()
}

func (es *ElasticStore) updateIndexSettings(ctx context.Context, settings map[string]interface{}) error {
	if _, err := es.Client.IndexPutSettings(es.Index).BodyJson(settings).Do(ctx); err != nil {
		return unavailable(err, "updating settings of %s", es.Index)
	}

	es.logger.Debug().Msg("Index settings updated")
	return nil
}

// newestFirst orders by timePosted, breaking ties by UUID so pages stay stable.
func newestFirst() []elastic.Sorter {
	return []elastic.Sorter{
		elastic.NewFieldSort("timePosted").Desc().UnmappedType("date"),
		elastic.NewFieldSort("UUID").Asc().UnmappedType("keyword"),
	}
}

func unavailable(err error, format string, args ...any) error {
	return apperrors.StoreUnavailable("post store is unavailable").Wrap(err).WithInternal(format, args...)
}
