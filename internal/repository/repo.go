package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/valkyrion/radiobot/internal/cache"
)

// stationTTL bounds how stale a cached station row may get; the dashboard
// edits stations out-of-band so reads must eventually converge.
const stationTTL = 30 * time.Second

type stationCache struct {
	byID *cache.TTL
	all  *cache.TTL
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{
		db: db,
		stations: &stationCache{
			byID: cache.New(stationTTL),
			all:  cache.New(stationTTL),
		},
	}
}

const stationCols = `id, name, url, genre, quality, artwork, is_favorite, is_active, listeners`

func scanStation(row interface{ Scan(...any) error }) (*Station, error) {
	var s Station
	var fav, active int
	if err := row.Scan(&s.ID, &s.Name, &s.URL, &s.Genre, &s.Quality, &s.Artwork, &fav, &active, &s.Listeners); err != nil {
		return nil, err
	}
	s.IsFavorite = fav != 0
	s.IsActive = active != 0
	return &s, nil
}

// GetStation returns (nil, nil) when no such station exists; callers treat
// a missing row as "no station", not as a failure.
func (r *Repo) GetStation(ctx context.Context, id int64) (*Station, error) {
	key := fmt.Sprint(id)
	if v, ok := r.stations.byID.Get(key); ok {
		st := v.(Station)
		return &st, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+stationCols+` FROM stations WHERE id = ?`, id)
	st, err := scanStation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	r.stations.byID.Set(key, *st)
	return st, nil
}

func (r *Repo) GetAllStations(ctx context.Context) ([]Station, error) {
	if v, ok := r.stations.all.Get("all"); ok {
		return v.([]Station), nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+stationCols+` FROM stations WHERE is_active = 1 ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.stations.all.Set("all", out)
	return out, nil
}

func (r *Repo) UpsertGuild(ctx context.Context, id, name string, memberCount int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guilds(id, name, member_count, is_connected) VALUES (?,?,?,1)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, member_count=excluded.member_count, is_connected=1`,
		id, name, memberCount,
	)
	return err
}

func (r *Repo) GetGuild(ctx context.Context, id string) (*Guild, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, member_count, is_connected, voice_channel_id, last_station_id, last_playing, volume
		FROM guilds WHERE id = ?`, id)

	var g Guild
	var connected, lastPlaying int
	var lastStation sql.NullInt64
	if err := row.Scan(&g.ID, &g.Name, &g.MemberCount, &connected, &g.VoiceChannelID, &lastStation, &lastPlaying, &g.Volume); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	g.IsConnected = connected != 0
	g.LastPlaying = lastPlaying != 0
	if lastStation.Valid {
		v := lastStation.Int64
		g.LastStationID = &v
	}
	return &g, nil
}

func (r *Repo) SetGuildConnected(ctx context.Context, id string, connected bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE guilds SET is_connected=? WHERE id=?`, boolToInt(connected), id)
	return err
}

func (r *Repo) SetGuildVoiceChannel(ctx context.Context, id, channelID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE guilds SET voice_channel_id=? WHERE id=?`, channelID, id)
	return err
}

// GetLastPlayedStation resolves the guild's last_station_id to a station
// row. A dangling or missing pointer yields (nil, nil).
func (r *Repo) GetLastPlayedStation(ctx context.Context, guildID string) (*Station, error) {
	g, err := r.GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if g == nil || g.LastStationID == nil {
		return nil, nil
	}
	return r.GetStation(ctx, *g.LastStationID)
}

func (r *Repo) SaveLastPlayedStation(ctx context.Context, guildID string, stationID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE guilds SET last_station_id=?, last_playing=1 WHERE id=?`, stationID, guildID)
	return err
}

func (r *Repo) SaveVolume(ctx context.Context, guildID string, volume int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE guilds SET volume=? WHERE id=?`, volume, guildID)
	return err
}

func (r *Repo) UpdateListeners(ctx context.Context, stationID int64, listeners int) error {
	r.stations.byID.Delete(fmt.Sprint(stationID))
	_, err := r.db.ExecContext(ctx, `UPDATE stations SET listeners=? WHERE id=?`, listeners, stationID)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
