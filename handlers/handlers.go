// Package handlers wires the HTTP API: search, discovery, lyrics, auth,
// playlists, favorites, stream resolution, proxying, and the optional
// local player transport.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"melodex/aggregator"
	"melodex/auth"
	"melodex/classifier"
	"melodex/config"
	"melodex/database"
	"melodex/discover"
	"melodex/lyrics"
	"melodex/models"
	"melodex/pages"
	"melodex/player"
	"melodex/proxy"
	"melodex/resolver"
)

type Handlers struct {
	agg      *aggregator.Aggregator
	discover *discover.Service
	resolver *resolver.Resolver
	lyrics   *lyrics.Client
	db       *database.Database
	proxy    *proxy.Proxy
	engine   *player.Engine // nil unless the local player is enabled
	logger   *log.Entry
}

func New(agg *aggregator.Aggregator, disc *discover.Service, res *resolver.Resolver,
	lyr *lyrics.Client, db *database.Database, prox *proxy.Proxy, engine *player.Engine) *Handlers {
	return &Handlers{
		agg:      agg,
		discover: disc,
		resolver: res,
		lyrics:   lyr,
		db:       db,
		proxy:    prox,
		engine:   engine,
		logger:   log.WithFields(log.Fields{"module": "handlers"}),
	}
}

func (h *Handlers) Register(router *gin.Engine) {
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pages.Landing))
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	api := router.Group("/api")

	music := api.Group("/music")
	music.GET("/search", h.search)
	music.GET("/instrumental", h.searchInstrumental)
	music.GET("/recommendations", h.recommendations)
	music.GET("/curated", h.curated)
	music.GET("/genre/:genre", h.byGenre)
	music.GET("/trending", h.trending)

	api.GET("/songs/lyrics", h.songLyrics)
	api.POST("/resolve", h.resolve)
	api.GET("/proxy/audio", h.proxy.Stream)

	api.POST("/auth/signup", h.signup)
	api.POST("/auth/login", h.login)

	private := api.Group("", auth.Middleware())
	private.GET("/auth/me", h.me)
	private.POST("/playlists", h.createPlaylist)
	private.GET("/playlists", h.listPlaylists)
	private.GET("/playlists/:id", h.getPlaylist)
	private.DELETE("/playlists/:id", h.deletePlaylist)
	private.POST("/playlists/:id/tracks", h.addPlaylistTrack)
	private.DELETE("/playlists/:id/tracks/:provider/:trackId", h.removePlaylistTrack)
	private.GET("/favorites", h.listFavorites)
	private.POST("/favorites", h.addFavorite)
	private.DELETE("/favorites/:provider/:trackId", h.removeFavorite)

	if h.engine != nil {
		pl := api.Group("/player")
		pl.GET("", h.playerSession)
		pl.POST("/play", h.playerPlay)
		pl.POST("/toggle", h.playerToggle)
		pl.POST("/next", h.playerNext)
		pl.POST("/previous", h.playerPrevious)
		pl.POST("/seek", h.playerSeek)
		pl.POST("/volume", h.playerVolume)
		pl.POST("/mute", h.playerMute)
		pl.POST("/repeat", h.playerRepeat)
		pl.POST("/shuffle", h.playerShuffle)
	}
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func okList(c *gin.Context, data any, count int) {
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func (h *Handlers) limit(c *gin.Context) int {
	limit := config.Config.Options.SearchLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 50 {
			limit = n
		}
	}
	return limit
}

func (h *Handlers) search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		fail(c, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	tracks, err := h.agg.Search(c.Request.Context(), query, h.limit(c))
	if errors.Is(err, aggregator.ErrNoResults) {
		fail(c, http.StatusBadGateway, "All music providers are unavailable")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Search failed")
		return
	}
	okList(c, tracks, len(tracks))
}

func (h *Handlers) searchInstrumental(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		fail(c, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	tracks, err := h.agg.Search(c.Request.Context(), query, h.limit(c))
	if errors.Is(err, aggregator.ErrNoResults) {
		fail(c, http.StatusBadGateway, "All music providers are unavailable")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Search failed")
		return
	}
	filtered := classifier.Filter(tracks)
	okList(c, filtered, len(filtered))
}

func (h *Handlers) recommendations(c *gin.Context) {
	tracks, err := h.discover.Instrumental(c.Request.Context(), h.limit(c))
	if err != nil {
		fail(c, http.StatusBadGateway, "Could not fetch recommendations")
		return
	}
	okList(c, tracks, len(tracks))
}

// curated serves the catalog's editorially tagged instrumental tracks,
// bypassing the keyword heuristics.
func (h *Handlers) curated(c *gin.Context) {
	tracks, err := h.discover.CatalogInstrumental(c.Request.Context(), h.limit(c))
	if err != nil {
		fail(c, http.StatusBadGateway, "Could not fetch curated tracks")
		return
	}
	okList(c, tracks, len(tracks))
}

func (h *Handlers) byGenre(c *gin.Context) {
	tracks, err := h.discover.ByGenre(c.Request.Context(), c.Param("genre"), h.limit(c))
	if err != nil {
		fail(c, http.StatusBadGateway, "Could not fetch genre feed")
		return
	}
	okList(c, tracks, len(tracks))
}

func (h *Handlers) trending(c *gin.Context) {
	tracks, err := h.discover.Trending(c.Request.Context(), h.limit(c))
	if err != nil {
		fail(c, http.StatusBadGateway, "Could not fetch trending tracks")
		return
	}
	okList(c, tracks, len(tracks))
}

func (h *Handlers) songLyrics(c *gin.Context) {
	title := c.Query("title")
	if title == "" {
		fail(c, http.StatusBadRequest, "Query parameter 'title' is required")
		return
	}

	text, info, err := h.lyrics.Search(c.Request.Context(), title, c.Query("artist"))
	if err != nil {
		fail(c, http.StatusBadGateway, "Lyrics lookup failed")
		return
	}
	if text == "" {
		fail(c, http.StatusNotFound, "No lyrics found")
		return
	}
	ok(c, gin.H{"lyrics": text, "track": info})
}

// resolve accepts a track in the body and returns the URL the client
// should actually play, with the proxy indirection already applied.
func (h *Handlers) resolve(c *gin.Context) {
	var track models.Track
	if err := c.ShouldBindJSON(&track); err != nil {
		fail(c, http.StatusBadRequest, "Invalid track payload")
		return
	}

	resolution, err := h.resolver.Resolve(track)
	if errors.Is(err, resolver.ErrNotPlayable) {
		fail(c, http.StatusUnprocessableEntity, "This track cannot be played. No audio stream available.")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Resolution failed")
		return
	}
	ok(c, resolution)
}

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *Handlers) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Username, email, and a password of 6+ characters are required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not create account")
		return
	}

	user, err := h.db.CreateUser(req.Username, req.Email, hash)
	if err != nil {
		fail(c, http.StatusConflict, "Username or email already in use")
		return
	}

	token, err := auth.IssueToken(user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not issue token")
		return
	}
	ok(c, gin.H{"token": token, "user": gin.H{"id": user.ID, "username": user.Username, "email": user.Email}})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.db.UserByEmail(req.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		// Same response either way so the endpoint doesn't leak which
		// emails exist.
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := auth.IssueToken(user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not issue token")
		return
	}
	ok(c, gin.H{"token": token, "user": gin.H{"id": user.ID, "username": user.Username, "email": user.Email}})
}

func (h *Handlers) me(c *gin.Context) {
	user, err := h.db.UserByID(auth.UserID(c))
	if err != nil {
		fail(c, http.StatusNotFound, "User not found")
		return
	}
	ok(c, gin.H{"id": user.ID, "username": user.Username, "email": user.Email})
}

type createPlaylistRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Public      bool   `json:"isPublic"`
}

func (h *Handlers) createPlaylist(c *gin.Context) {
	var req createPlaylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Playlist name is required")
		return
	}

	playlist, err := h.db.CreatePlaylist(auth.UserID(c), req.Name, req.Description, req.Public)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not create playlist")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": playlist})
}

func (h *Handlers) listPlaylists(c *gin.Context) {
	playlists, err := h.db.UserPlaylists(auth.UserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch playlists")
		return
	}
	okList(c, playlists, len(playlists))
}

func (h *Handlers) playlistID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid playlist id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) getPlaylist(c *gin.Context) {
	id, valid := h.playlistID(c)
	if !valid {
		return
	}
	playlist, err := h.db.PlaylistByID(id, auth.UserID(c))
	if !h.dbOK(c, err) {
		return
	}
	ok(c, playlist)
}

func (h *Handlers) deletePlaylist(c *gin.Context) {
	id, valid := h.playlistID(c)
	if !valid {
		return
	}
	if !h.dbOK(c, h.db.DeletePlaylist(id, auth.UserID(c))) {
		return
	}
	ok(c, gin.H{"deleted": id})
}

func (h *Handlers) addPlaylistTrack(c *gin.Context) {
	id, valid := h.playlistID(c)
	if !valid {
		return
	}
	var track models.Track
	if err := c.ShouldBindJSON(&track); err != nil || track.ID.IsZero() {
		fail(c, http.StatusBadRequest, "A track with a provider identity is required")
		return
	}
	if !h.dbOK(c, h.db.AddTrackToPlaylist(id, auth.UserID(c), track)) {
		return
	}
	ok(c, gin.H{"added": track.ID.String()})
}

func (h *Handlers) removePlaylistTrack(c *gin.Context) {
	id, valid := h.playlistID(c)
	if !valid {
		return
	}
	trackID := models.TrackID{Provider: models.Provider(c.Param("provider")), ID: c.Param("trackId")}
	if !h.dbOK(c, h.db.RemoveTrackFromPlaylist(id, auth.UserID(c), trackID)) {
		return
	}
	ok(c, gin.H{"removed": trackID.String()})
}

func (h *Handlers) listFavorites(c *gin.Context) {
	tracks, err := h.db.Favorites(auth.UserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch favorites")
		return
	}
	okList(c, tracks, len(tracks))
}

func (h *Handlers) addFavorite(c *gin.Context) {
	var track models.Track
	if err := c.ShouldBindJSON(&track); err != nil || track.ID.IsZero() {
		fail(c, http.StatusBadRequest, "A track with a provider identity is required")
		return
	}
	if err := h.db.AddFavorite(auth.UserID(c), track); err != nil {
		fail(c, http.StatusInternalServerError, "Could not save favorite")
		return
	}
	ok(c, gin.H{"added": track.ID.String()})
}

func (h *Handlers) removeFavorite(c *gin.Context) {
	trackID := models.TrackID{Provider: models.Provider(c.Param("provider")), ID: c.Param("trackId")}
	if !h.dbOK(c, h.db.RemoveFavorite(auth.UserID(c), trackID)) {
		return
	}
	ok(c, gin.H{"removed": trackID.String()})
}

// dbOK translates storage errors to HTTP responses. Returns true when the
// operation succeeded.
func (h *Handlers) dbOK(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, database.ErrNotFound):
		fail(c, http.StatusNotFound, "Not found")
	case errors.Is(err, database.ErrForbidden):
		fail(c, http.StatusForbidden, "Not authorized")
	default:
		h.logger.Errorf("database error: %v", err)
		fail(c, http.StatusInternalServerError, "Storage error")
	}
	return false
}

func (h *Handlers) playerSession(c *gin.Context) {
	ok(c, h.engine.Session())
}

type playRequest struct {
	Track models.Track   `json:"track"`
	Queue []models.Track `json:"queue"`
}

func (h *Handlers) playerPlay(c *gin.Context) {
	var req playRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Track.ID.IsZero() {
		fail(c, http.StatusBadRequest, "A track with a provider identity is required")
		return
	}
	if err := h.engine.Play(req.Track, req.Queue); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	ok(c, h.engine.Session())
}

func (h *Handlers) playerToggle(c *gin.Context) {
	h.engine.TogglePlayPause()
	ok(c, h.engine.Session())
}

func (h *Handlers) playerNext(c *gin.Context) {
	if err := h.engine.PlayNext(); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	ok(c, h.engine.Session())
}

func (h *Handlers) playerPrevious(c *gin.Context) {
	if err := h.engine.PlayPrevious(); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	ok(c, h.engine.Session())
}

func (h *Handlers) playerSeek(c *gin.Context) {
	t, err := strconv.ParseFloat(c.Query("t"), 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Query parameter 't' must be a number of seconds")
		return
	}
	h.engine.SeekTo(t)
	ok(c, h.engine.Session())
}

func (h *Handlers) playerVolume(c *gin.Context) {
	v, err := strconv.ParseFloat(c.Query("v"), 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Query parameter 'v' must be a number between 0 and 1")
		return
	}
	h.engine.SetVolume(v)
	ok(c, h.engine.Session())
}

func (h *Handlers) playerMute(c *gin.Context) {
	h.engine.ToggleMute()
	ok(c, h.engine.Session())
}

func (h *Handlers) playerRepeat(c *gin.Context) {
	h.engine.ToggleRepeatOne()
	ok(c, h.engine.Session())
}

func (h *Handlers) playerShuffle(c *gin.Context) {
	h.engine.ToggleShuffle()
	ok(c, h.engine.Session())
}
