// Package database persists users, playlists, and favorites in SQLite.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"melodex/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrForbidden = errors.New("not authorized for this record")
)

type Database struct {
	db *sql.DB
}

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Playlist struct {
	ID          int64          `json:"id"`
	UserID      int64          `json:"userId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Public      bool           `json:"isPublic"`
	Tracks      []models.Track `json:"tracks,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// New opens the database at path (or DB_PATH, defaulting to
// ./data/melodex.db) and runs migrations.
func New(path string) (*Database, error) {
	if path == "" {
		path = os.Getenv("DB_PATH")
	}
	if path == "" {
		path = "./data/melodex.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL keeps reads cheap while the player loop writes favorites.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	d := &Database{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infof("Database initialized at %s", path)
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			provider_track_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			album_art TEXT NOT NULL DEFAULT '',
			duration_seconds INTEGER NOT NULL DEFAULT 0,
			stream_url TEXT NOT NULL DEFAULT '',
			preview_url TEXT NOT NULL DEFAULT '',
			has_lyrics INTEGER NOT NULL DEFAULT 0,
			instrumentalness REAL,
			UNIQUE (provider, provider_track_id)
		)`,
		`CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_public INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_playlists_user ON playlists(user_id)`,
		`CREATE TABLE IF NOT EXISTS playlist_tracks (
			playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			track_id INTEGER NOT NULL REFERENCES tracks(id),
			position INTEGER NOT NULL,
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (playlist_id, track_id)
		)`,
		`CREATE TABLE IF NOT EXISTS favorites (
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			track_id INTEGER NOT NULL REFERENCES tracks(id),
			added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, track_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// CreateUser inserts a new account. The password must already be hashed.
func (d *Database) CreateUser(username, email, passwordHash string) (*User, error) {
	res, err := d.db.Exec(
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		username, email, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	id, _ := res.LastInsertId()
	return d.UserByID(id)
}

func (d *Database) UserByID(id int64) (*User, error) {
	return d.scanUser(d.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (d *Database) UserByEmail(email string) (*User, error) {
	return d.scanUser(d.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`, email))
}

func (d *Database) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

// FindOrCreateTrack upserts a track by its provider identity and returns
// the row id. Metadata is refreshed on conflict so stale stream URLs get
// replaced next time the track is saved.
func (d *Database) FindOrCreateTrack(track models.Track) (int64, error) {
	var instrumentalness any
	if track.Instrumentalness != nil {
		instrumentalness = *track.Instrumentalness
	}

	_, err := d.db.Exec(
		`INSERT INTO tracks (provider, provider_track_id, title, artist, album, album_art,
		                     duration_seconds, stream_url, preview_url, has_lyrics, instrumentalness)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider, provider_track_id) DO UPDATE SET
		   title = excluded.title, artist = excluded.artist, album = excluded.album,
		   album_art = excluded.album_art, duration_seconds = excluded.duration_seconds,
		   stream_url = excluded.stream_url, preview_url = excluded.preview_url,
		   has_lyrics = excluded.has_lyrics, instrumentalness = excluded.instrumentalness`,
		string(track.ID.Provider), track.ID.ID, track.Title, track.Artist, track.Album,
		track.AlbumArt, track.DurationSeconds, track.StreamURL, track.PreviewURL,
		track.HasLyrics, instrumentalness,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert track: %w", err)
	}

	var id int64
	err = d.db.QueryRow(
		`SELECT id FROM tracks WHERE provider = ? AND provider_track_id = ?`,
		string(track.ID.Provider), track.ID.ID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to look up track id: %w", err)
	}
	return id, nil
}

func (d *Database) CreatePlaylist(userID int64, name, description string, public bool) (*Playlist, error) {
	res, err := d.db.Exec(
		`INSERT INTO playlists (user_id, name, description, is_public) VALUES (?, ?, ?, ?)`,
		userID, name, description, public,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	id, _ := res.LastInsertId()
	return d.playlistRow(id)
}

// PlaylistByID loads a playlist with its tracks. Private playlists are
// only visible to their owner.
func (d *Database) PlaylistByID(id, requestingUserID int64) (*Playlist, error) {
	p, err := d.playlistRow(id)
	if err != nil {
		return nil, err
	}
	if p.UserID != requestingUserID && !p.Public {
		return nil, ErrForbidden
	}

	rows, err := d.db.Query(
		`SELECT t.provider, t.provider_track_id, t.title, t.artist, t.album, t.album_art,
		        t.duration_seconds, t.stream_url, t.preview_url, t.has_lyrics, t.instrumentalness
		 FROM playlist_tracks pt
		 JOIN tracks t ON t.id = pt.track_id
		 WHERE pt.playlist_id = ?
		 ORDER BY pt.position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		p.Tracks = append(p.Tracks, track)
	}
	return p, rows.Err()
}

func (d *Database) playlistRow(id int64) (*Playlist, error) {
	var p Playlist
	err := d.db.QueryRow(
		`SELECT id, user_id, name, description, is_public, created_at, updated_at
		 FROM playlists WHERE id = ?`, id,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Public, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return &p, nil
}

// UserPlaylists returns the user's playlists, most recently updated first.
func (d *Database) UserPlaylists(userID int64) ([]Playlist, error) {
	rows, err := d.db.Query(
		`SELECT id, user_id, name, description, is_public, created_at, updated_at
		 FROM playlists WHERE user_id = ? ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		var p Playlist
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Public, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// AddTrackToPlaylist appends a track, ignoring duplicates. Only the owner
// may modify a playlist.
func (d *Database) AddTrackToPlaylist(playlistID, userID int64, track models.Track) error {
	if err := d.requireOwner(playlistID, userID); err != nil {
		return err
	}
	trackID, err := d.FindOrCreateTrack(track)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(
		`INSERT OR IGNORE INTO playlist_tracks (playlist_id, track_id, position)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_tracks WHERE playlist_id = ?))`,
		playlistID, trackID, playlistID,
	)
	if err != nil {
		return fmt.Errorf("failed to add track to playlist: %w", err)
	}
	return d.touchPlaylist(playlistID)
}

func (d *Database) RemoveTrackFromPlaylist(playlistID, userID int64, trackID models.TrackID) error {
	if err := d.requireOwner(playlistID, userID); err != nil {
		return err
	}
	res, err := d.db.Exec(
		`DELETE FROM playlist_tracks
		 WHERE playlist_id = ?
		   AND track_id = (SELECT id FROM tracks WHERE provider = ? AND provider_track_id = ?)`,
		playlistID, string(trackID.Provider), trackID.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove track from playlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return d.touchPlaylist(playlistID)
}

func (d *Database) DeletePlaylist(playlistID, userID int64) error {
	if err := d.requireOwner(playlistID, userID); err != nil {
		return err
	}
	_, err := d.db.Exec(`DELETE FROM playlists WHERE id = ?`, playlistID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return nil
}

func (d *Database) requireOwner(playlistID, userID int64) error {
	p, err := d.playlistRow(playlistID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return ErrForbidden
	}
	return nil
}

func (d *Database) touchPlaylist(playlistID int64) error {
	_, err := d.db.Exec(`UPDATE playlists SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, playlistID)
	return err
}

// AddFavorite saves a track for the user. Duplicates are ignored.
func (d *Database) AddFavorite(userID int64, track models.Track) error {
	trackID, err := d.FindOrCreateTrack(track)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		`INSERT OR IGNORE INTO favorites (user_id, track_id) VALUES (?, ?)`,
		userID, trackID,
	)
	return err
}

func (d *Database) RemoveFavorite(userID int64, trackID models.TrackID) error {
	res, err := d.db.Exec(
		`DELETE FROM favorites
		 WHERE user_id = ?
		   AND track_id = (SELECT id FROM tracks WHERE provider = ? AND provider_track_id = ?)`,
		userID, string(trackID.Provider), trackID.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Favorites returns the user's saved tracks, newest first.
func (d *Database) Favorites(userID int64) ([]models.Track, error) {
	rows, err := d.db.Query(
		`SELECT t.provider, t.provider_track_id, t.title, t.artist, t.album, t.album_art,
		        t.duration_seconds, t.stream_url, t.preview_url, t.has_lyrics, t.instrumentalness
		 FROM favorites f
		 JOIN tracks t ON t.id = f.track_id
		 WHERE f.user_id = ?
		 ORDER BY f.added_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	var tracks []models.Track
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

func scanTrack(rows *sql.Rows) (models.Track, error) {
	var t models.Track
	var provider string
	var instrumentalness sql.NullFloat64
	err := rows.Scan(&provider, &t.ID.ID, &t.Title, &t.Artist, &t.Album, &t.AlbumArt,
		&t.DurationSeconds, &t.StreamURL, &t.PreviewURL, &t.HasLyrics, &instrumentalness)
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to scan track row: %w", err)
	}
	t.ID.Provider = models.Provider(provider)
	if instrumentalness.Valid {
		t.Instrumentalness = &instrumentalness.Float64
	}
	return t, nil
}
