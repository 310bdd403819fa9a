package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Sonora/cache"
	"Sonora/config"
	"Sonora/core/audio"
	"Sonora/core/auth"
	"Sonora/core/notify"
	"Sonora/db"
	"Sonora/logger"
	"Sonora/repository"
	"Sonora/storage"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

const mirrorTimeout = 2 * time.Minute

// collection 同时注册 /path 和 /path/
func collection(router *mux.Router, path string, f http.HandlerFunc, methods ...string) {
	router.HandleFunc(path, f).Methods(methods...)
	router.HandleFunc(path+"/", f).Methods(methods...)
}

// NewRouter 注册所有路由并套上中间件
func NewRouter(h *APIHandler) http.Handler {
	router := mux.NewRouter()
	protected := h.AuthMiddleware

	router.HandleFunc("/", h.RootHandler).Methods(http.MethodGet)

	// 认证
	router.HandleFunc("/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/auth/token", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/auth/me", protected(h.MeHandler)).Methods(http.MethodGet)

	// 用户。固定路径先于 {id} 注册
	router.HandleFunc("/users/me", protected(h.MeHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/me", protected(h.UpdateMeHandler)).Methods(http.MethodPut)
	router.HandleFunc("/users/me/image", protected(h.DeleteMyImageHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/users/me/songs", protected(h.MySongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/me/albums", protected(h.MyAlbumsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/me/playlists", protected(h.MyPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/me/liked-songs", protected(h.LikedSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/me/liked-albums", protected(h.LikedAlbumsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/following", protected(h.FollowingHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/followers", protected(h.FollowersHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/follow/{id:[0-9]+}", protected(h.FollowHandler)).Methods(http.MethodPost)
	router.HandleFunc("/users/follow/{id:[0-9]+}", protected(h.UnfollowHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/users/follow/{id:[0-9]+}/status", protected(h.FollowStatusHandler)).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[0-9]+}", h.GetUserHandler).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[0-9]+}/songs", h.UserSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[0-9]+}/albums", h.UserAlbumsHandler).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[0-9]+}/image", h.GetUserImageHandler).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[0-9]+}/profile", protected(h.UserProfileHandler)).Methods(http.MethodGet)

	// 歌曲
	collection(router, "/songs", h.ListSongsHandler, http.MethodGet)
	collection(router, "/songs", protected(h.CreateSongHandler), http.MethodPost)
	router.HandleFunc("/songs/check-likes", protected(h.CheckLikesHandler)).Methods(http.MethodPost)
	router.HandleFunc("/songs/{id:[0-9]+}", h.GetSongHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id:[0-9]+}", protected(h.UpdateSongHandler)).Methods(http.MethodPut)
	router.HandleFunc("/songs/{id:[0-9]+}", protected(h.DeleteSongHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/songs/{id:[0-9]+}/stream", h.StreamSongHandler).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/songs/{id:[0-9]+}/info", h.SongInfoHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id:[0-9]+}/cover", h.SongCoverHandler).Methods(http.MethodGet)
	router.HandleFunc("/songs/{id:[0-9]+}/like", protected(h.LikeSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/songs/{id:[0-9]+}/like", protected(h.UnlikeSongHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/songs/{id:[0-9]+}/is-liked", protected(h.IsSongLikedHandler)).Methods(http.MethodGet)

	// 专辑
	collection(router, "/albums", h.ListAlbumsHandler, http.MethodGet)
	collection(router, "/albums", protected(h.CreateAlbumHandler), http.MethodPost)
	router.HandleFunc("/albums/user/{id:[0-9]+}", h.AlbumsByUserHandler).Methods(http.MethodGet)
	router.HandleFunc("/albums/{id:[0-9]+}", h.GetAlbumHandler).Methods(http.MethodGet)
	router.HandleFunc("/albums/{id:[0-9]+}", protected(h.UpdateAlbumHandler)).Methods(http.MethodPut)
	router.HandleFunc("/albums/{id:[0-9]+}", protected(h.DeleteAlbumHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/albums/{id:[0-9]+}/songs", h.AlbumSongsHandler).Methods(http.MethodGet)
	router.HandleFunc("/albums/{id:[0-9]+}/songs/{song_id:[0-9]+}", protected(h.AddSongToAlbumHandler)).Methods(http.MethodPost)
	router.HandleFunc("/albums/{id:[0-9]+}/songs/{song_id:[0-9]+}", protected(h.RemoveSongFromAlbumHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/albums/{id:[0-9]+}/like", protected(h.LikeAlbumHandler)).Methods(http.MethodPost)
	router.HandleFunc("/albums/{id:[0-9]+}/like", protected(h.UnlikeAlbumHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/albums/{id:[0-9]+}/cover", h.AlbumCoverHandler).Methods(http.MethodGet)

	// 歌单，全部需要登录且只能访问自己的
	collection(router, "/playlists", protected(h.ListPlaylistsHandler), http.MethodGet)
	collection(router, "/playlists", protected(h.CreatePlaylistHandler), http.MethodPost)
	router.HandleFunc("/playlists/{id:[0-9]+}", protected(h.GetPlaylistHandler)).Methods(http.MethodGet)
	router.HandleFunc("/playlists/{id:[0-9]+}", protected(h.UpdatePlaylistHandler)).Methods(http.MethodPut)
	router.HandleFunc("/playlists/{id:[0-9]+}", protected(h.DeletePlaylistHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/playlists/{id:[0-9]+}/songs/{song_id:[0-9]+}", protected(h.AddSongToPlaylistHandler)).Methods(http.MethodPost)
	router.HandleFunc("/playlists/{id:[0-9]+}/songs/{song_id:[0-9]+}", protected(h.RemoveSongFromPlaylistHandler)).Methods(http.MethodDelete)

	// 流派
	collection(router, "/genres", h.ListGenresHandler, http.MethodGet)
	collection(router, "/genres", protected(h.CreateGenreHandler), http.MethodPost)
	router.HandleFunc("/genres/popular", h.PopularGenresHandler).Methods(http.MethodGet)
	router.HandleFunc("/genres/{id:[0-9]+}", h.GetGenreHandler).Methods(http.MethodGet)
	router.HandleFunc("/genres/{id:[0-9]+}", protected(h.UpdateGenreHandler)).Methods(http.MethodPut)
	router.HandleFunc("/genres/{id:[0-9]+}", protected(h.DeleteGenreHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/genres/{id:[0-9]+}/songs", h.GenreSongsHandler).Methods(http.MethodGet)

	// 搜索
	optional := h.OptionalAuthMiddleware
	router.HandleFunc("/search/songs", optional(h.SearchSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/search/albums", optional(h.SearchAlbumsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/search/playlists", optional(h.SearchPlaylistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/search/genres", optional(h.SearchGenresHandler)).Methods(http.MethodGet)
	router.HandleFunc("/search/artists", optional(h.SearchArtistsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/search/suggestions", h.SuggestionsHandler).Methods(http.MethodGet)
	router.HandleFunc("/search/history", protected(h.SearchHistoryHandler)).Methods(http.MethodGet)
	router.HandleFunc("/search/history", protected(h.ClearSearchHistoryHandler)).Methods(http.MethodDelete)

	// 实时通知
	router.HandleFunc("/ws/notifications", h.NotificationsHandler).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Range"}),
		handlers.ExposedHeaders([]string{"Content-Length", "Content-Range", "Accept-Ranges"}),
		handlers.MaxAge(86400),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)

	return recovery(accessLog(cors(router)))
}

// recoveryLogger 把 panic 信息写入 zap
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Error("[HTTP] 请求处理 panic", logger.String("panic", fmt.Sprint(v...)))
}

// accessLog 记录每个请求的方法、路径、状态码、字节数和耗时
func accessLog(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Info("[HTTP] request",
			logger.String("method", p.Request.Method),
			logger.String("path", p.URL.Path),
			logger.Int("status", p.StatusCode),
			logger.Int("bytes", p.Size),
			logger.Duration("duration", time.Since(p.TimeStamp)),
			logger.String("remote", p.Request.RemoteAddr))
	})
}

// Start initializes every component and runs the HTTP server until SIGINT/SIGTERM.
func Start(cfg *config.Config) error {
	store := storage.NewLocalStore(cfg)
	if err := store.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create upload dirs: %w", err)
	}

	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		return err
	}
	defer db.CloseGormDB(gdb)

	if err := db.AutoMigrateModels(gdb); err != nil {
		return err
	}

	// Redis 只用于缓存和搜索历史，连接失败时降级运行
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = db.ConnectRedis(cfg)
		if err != nil {
			logger.Warn("Redis 不可用，缓存和搜索历史已禁用", logger.ErrorField(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var mirror *storage.AsyncMirror
	if cfg.MinioMirror {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		m, err := storage.NewMinioMirror(ctx, cfg)
		cancel()
		if err != nil {
			logger.Warn("MinIO 镜像初始化失败，已禁用", logger.ErrorField(err))
		} else {
			mirror = storage.NewAsyncMirror(m, mirrorTimeout)
			logger.Info("MinIO 镜像已启用", logger.String("bucket", cfg.MinioBucket))
		}
	}

	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()

	songRepo := repository.NewGormSongRepository(gdb)
	apiHandler := NewAPIHandler(cfg, Dependencies{
		Users:      repository.NewGormUserRepository(gdb),
		Songs:      songRepo,
		Albums:     repository.NewGormAlbumRepository(gdb),
		Playlists:  repository.NewGormPlaylistRepository(gdb),
		Genres:     repository.NewGormGenreRepository(gdb),
		Store:      store,
		Prober:     audio.NewFFprobeProber(cfg.FFprobePath, cfg.ProbeTimeout),
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		History:    cache.NewSearchHistory(redisClient),
		GenreCache: cache.NewGenreCache(redisClient),
		Hub:        hub,
		Mirror:     mirror,
	})

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if cfg.WatchUploads {
		watcher, err := storage.NewWatcher(store, cfg.UploadDirs(), func(key string) {
			reportMissingFile(songRepo, key)
		})
		if err != nil {
			logger.Warn("上传目录监控启动失败", logger.ErrorField(err))
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
		}
	}

	// WriteTimeout 为 0，长时间的音频流不能被截断
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           NewRouter(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}
	logger.Info("Shutting down server...")

	// 创建一个5秒超时的上下文
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	mirror.Wait()

	logger.Info("Server stopped")
	return nil
}

// reportMissingFile 文件在服务之外被删除时记录受影响的歌曲
func reportMissingFile(songs repository.SongRepository, key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	song, err := songs.GetByFilePath(ctx, key)
	if err != nil {
		logger.Error("查询被删除文件对应的歌曲失败", logger.String("key", key), logger.ErrorField(err))
		return
	}
	if song == nil {
		logger.Info("上传目录中的文件被删除", logger.String("key", key))
		return
	}
	logger.Warn("歌曲音频文件在服务之外被删除",
		logger.String("key", key),
		logger.Int64("songId", song.ID),
		logger.String("title", song.Title))
}
