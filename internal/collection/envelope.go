package collection

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/karaoke-room-system/pkg/models"
)

// FormatTag versions the export envelope.
const FormatTag = "1.0"

var ErrMalformedImport = errors.New("malformed collection data")

type Envelope struct {
	FormatTag  string              `json:"formatTag"`
	Collection *EnvelopeCollection `json:"collection"`
}

type EnvelopeCollection struct {
	Name       string            `json:"name"`
	Visibility models.Visibility `json:"visibility"`
	Songs      []models.Song     `json:"songs"`
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	if env.FormatTag != FormatTag {
		return nil, fmt.Errorf("%w: unsupported format %q", ErrMalformedImport, env.FormatTag)
	}
	if env.Collection == nil {
		return nil, fmt.Errorf("%w: missing collection", ErrMalformedImport)
	}
	if env.Collection.Name == "" {
		return nil, fmt.Errorf("%w: missing collection name", ErrMalformedImport)
	}
	return &env, nil
}

func encodeEnvelope(c models.PlaylistCollection) ([]byte, error) {
	songs := c.Songs
	if songs == nil {
		songs = []models.Song{}
	}
	data, err := json.MarshalIndent(Envelope{
		FormatTag: FormatTag,
		Collection: &EnvelopeCollection{
			Name:       c.Name,
			Visibility: c.Visibility,
			Songs:      songs,
		},
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collection: %w", err)
	}
	return data, nil
}
