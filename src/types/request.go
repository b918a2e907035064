package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"herd/src/apperrors"
)

// Coordinate keeps the literal the caller sent next to its parsed value,
// so the echo message reproduces the input exactly.
type Coordinate struct {
	Raw   string
	Value float64
}

type NearbyPostsRequest struct {
	Latitude  Coordinate
	Longitude Coordinate
}

type NearbyPostsResponse struct {
	Message  string   `json:"message"`
	Posts    []string `json:"posts"`
	NumPosts string   `json:"numPosts"`
}

type nearbyPostsPayload struct {
	Latitude  json.RawMessage `json:"latitude"`
	Longitude json.RawMessage `json:"longitude"`
}

// ParseNearbyPostsRequest decodes the callable data payload. Coordinates may be
// JSON numbers or numeric strings; anything else is an invalid request.
func ParseNearbyPostsRequest(data json.RawMessage) (NearbyPostsRequest, error) {
	var req NearbyPostsRequest

	if isNull(data) {
		return req, apperrors.InvalidRequest("request data is required")
	}

	var payload nearbyPostsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return req, apperrors.InvalidRequest("request data must be an object").Wrap(err)
	}

	lat, err := parseCoordinate("latitude", payload.Latitude, 90)
	if err != nil {
		return req, err
	}
	lon, err := parseCoordinate("longitude", payload.Longitude, 180)
	if err != nil {
		return req, err
	}

	req.Latitude = lat
	req.Longitude = lon
	return req, nil
}

func parseCoordinate(field string, raw json.RawMessage, bound float64) (Coordinate, error) {
	if isNull(raw) {
		return Coordinate{}, apperrors.InvalidRequest(field + " is required").WithField(field)
	}

	literal := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &literal); err != nil {
			return Coordinate{}, apperrors.InvalidRequest(field + " must be a number").WithField(field).Wrap(err)
		}
		literal = strings.TrimSpace(literal)
	}

	value, err := strconv.ParseFloat(literal, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || isHex(literal) {
		return Coordinate{}, apperrors.InvalidRequest(field+" must be a number").
			WithField(field).
			WithInternal("unparseable %s %q", field, literal)
	}
	if value < -bound || value > bound {
		return Coordinate{}, apperrors.InvalidRequest(field+" is out of range").
			WithField(field).
			WithInternal("%s %v outside [-%v, %v]", field, value, bound, bound)
	}

	return Coordinate{Raw: literal, Value: value}, nil
}

// isHex reports a hexadecimal literal such as 0x1p-2, which ParseFloat accepts.
func isHex(literal string) bool {
	digits := strings.TrimLeft(literal, "+-")
	return strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X")
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// EchoMessage renders the coordinates the way the mobile client displays them.
func (r NearbyPostsRequest) EchoMessage() string {
	return "lat " + r.Latitude.Raw + ", long " + r.Longitude.Raw
}

// NewNearbyPostsResponse collects the post texts in store order.
func NewNearbyPostsResponse(req NearbyPostsRequest, posts []Post) *NearbyPostsResponse {
	texts := make([]string, 0, len(posts))
	for _, post := range posts {
		texts = append(texts, post.Text)
	}

	return &NearbyPostsResponse{
		Message:  req.EchoMessage(),
		Posts:    texts,
		NumPosts: strconv.Itoa(len(texts)),
	}
}
