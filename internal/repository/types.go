package repository

import "database/sql"

type Repo struct {
	db       *sql.DB
	stations *stationCache
}

// Station is a named internet audio stream. Rows are managed by the
// dashboard/API layer; the bot treats them as read-mostly.
type Station struct {
	ID         int64
	Name       string
	URL        string
	Genre      string
	Quality    string
	Artwork    string
	IsFavorite bool
	IsActive   bool
	Listeners  int
}

// Guild is the per-server row the bot keeps in sync: which channels the
// radio is bound to, what played last, and the stored volume.
type Guild struct {
	ID             string
	Name           string
	MemberCount    int
	IsConnected    bool
	VoiceChannelID string
	LastStationID  *int64
	LastPlaying    bool
	Volume         int
}
