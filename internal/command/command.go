package command

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Type string

const (
	Play                    Type = "PLAY"
	Pause                   Type = "PAUSE"
	Skip                    Type = "SKIP"
	Seek                    Type = "SEEK"
	SetVolume               Type = "SET_VOLUME"
	ToggleMute              Type = "TOGGLE_MUTE"
	AddSong                 Type = "ADD_SONG"
	RemoveSong              Type = "REMOVE_SONG"
	MoveSongUp              Type = "MOVE_SONG_UP"
	MoveSongDown            Type = "MOVE_SONG_DOWN"
	MoveSongToTop           Type = "MOVE_SONG_TO_TOP"
	MoveSongToBottom        Type = "MOVE_SONG_TO_BOTTOM"
	ReorderQueue            Type = "REORDER_QUEUE"
	SetDisplayName          Type = "SET_DISPLAY_NAME"
	Ping                    Type = "PING"
	PlaylistAdd             Type = "PLAYLIST_ADD"
	PlaylistRemove          Type = "PLAYLIST_REMOVE"
	PlaylistToQueue         Type = "PLAYLIST_TO_QUEUE"
	CreateCollection        Type = "CREATE_COLLECTION"
	DeleteCollection        Type = "DELETE_COLLECTION"
	RenameCollection        Type = "RENAME_COLLECTION"
	SetCollectionVisibility Type = "SET_COLLECTION_VISIBILITY"
	ImportCollection        Type = "IMPORT_COLLECTION"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is the decoded form of every room-scoped message. Only the fields
// relevant to Type are read.
type Command struct {
	Type         Type    `json:"type"`
	Time         float64 `json:"time,omitempty"`
	Volume       int     `json:"volume,omitempty"`
	SourceURL    string  `json:"sourceUrl,omitempty"`
	YoutubeURL   string  `json:"youtubeUrl,omitempty"`
	AddedBy      string  `json:"addedBy,omitempty"`
	SongID       string  `json:"songId,omitempty"`
	NewIndex     int     `json:"newIndex,omitempty"`
	Name         string  `json:"name,omitempty"`
	CollectionID string  `json:"collectionId,omitempty"`
	Visibility   string  `json:"visibility,omitempty"`
	Data         string  `json:"data,omitempty"`
}

// URL returns the song link, accepting the older youtubeUrl field.
func (c Command) URL() string {
	if c.SourceURL != "" {
		return c.SourceURL
	}
	return c.YoutubeURL
}

func Decode(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("failed to decode command: %w", err)
	}
	if !cmd.Type.Valid() {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
	return cmd, nil
}

func (t Type) Valid() bool {
	switch t {
	case Play, Pause, Skip, Seek, SetVolume, ToggleMute,
		AddSong, RemoveSong, MoveSongUp, MoveSongDown, MoveSongToTop, MoveSongToBottom, ReorderQueue,
		SetDisplayName, Ping,
		PlaylistAdd, PlaylistRemove, PlaylistToQueue,
		CreateCollection, DeleteCollection, RenameCollection, SetCollectionVisibility, ImportCollection:
		return true
	}
	return false
}
