package db

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"herd/src/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Column order of a seed file row.
const (
	colID = iota
	colAuthorID
	colEmoji
	colText
	colTimePosted
	colLatitude
	colLongitude
	numColumns
)

// LoadPostsFile reads a tab-separated seed file. See ReadPosts.
func LoadPostsFile(path string, logger zerolog.Logger) ([]types.Post, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadPosts(file, logger)
}

// ReadPosts parses tab-separated post rows, skipping the header row.
// Rows that fail to parse are logged and skipped; empty IDs get a fresh UUID.
func ReadPosts(r io.Reader, logger zerolog.Logger) ([]types.Post, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = numColumns

	var posts []types.Post
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			logger.Warn().Int("line", line).Int("fields", len(record)).Msg("Skipping row with wrong field count")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		if line == 1 {
			continue
		}

		post, err := parsePostRecord(record)
		if err != nil {
			logger.Warn().Err(err).Int("line", line).Msg("Skipping malformed row")
			continue
		}
		posts = append(posts, post)
	}

	return posts, nil
}

func parsePostRecord(record []string) (types.Post, error) {
	timePosted, err := time.Parse(time.RFC3339, strings.TrimSpace(record[colTimePosted]))
	if err != nil {
		return types.Post{}, fmt.Errorf("timePosted: %w", err)
	}
	latitude, err := parseOptionalFloat(record[colLatitude])
	if err != nil {
		return types.Post{}, fmt.Errorf("latitude: %w", err)
	}
	longitude, err := parseOptionalFloat(record[colLongitude])
	if err != nil {
		return types.Post{}, fmt.Errorf("longitude: %w", err)
	}

	id := strings.TrimSpace(record[colID])
	if id == "" {
		id = uuid.NewString()
	}

	return types.Post{
		ID: id,
		Author: types.Author{
			ID:    strings.TrimSpace(record[colAuthorID]),
			Emoji: strings.TrimSpace(record[colEmoji]),
		},
		Text:       record[colText],
		Votes:      map[string]types.Vote{},
		TimePosted: timePosted,
		Latitude:   latitude,
		Longitude:  longitude,
	}, nil
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
