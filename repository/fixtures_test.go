package repository

import (
	"context"
	"testing"
	"time"

	"Sonora/db/dbtest"
	"Sonora/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	users     UserRepository
	songs     SongRepository
	albums    AlbumRepository
	playlists PlaylistRepository
	genres    GenreRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	return &fixture{
		db:        gdb,
		users:     NewGormUserRepository(gdb),
		songs:     NewGormSongRepository(gdb),
		albums:    NewGormAlbumRepository(gdb),
		playlists: NewGormPlaylistRepository(gdb),
		genres:    NewGormGenreRepository(gdb),
	}
}

func (f *fixture) user(t *testing.T, name string, artist bool) *model.User {
	t.Helper()
	u := &model.User{
		Email:          name + "@example.com",
		Username:       name,
		HashedPassword: "x",
		IsActive:       true,
		IsArtist:       artist,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) song(t *testing.T, creator *model.User, title string, duration int, genreIDs ...int64) *model.Song {
	t.Helper()
	s := &model.Song{
		Title:     title,
		Duration:  duration,
		FilePath:  "songs/" + title + ".mp3",
		CreatorID: creator.ID,
	}
	require.NoError(t, f.songs.Create(context.Background(), s, genreIDs))
	return s
}

func (f *fixture) album(t *testing.T, creator *model.User, title string) *model.Album {
	t.Helper()
	a := &model.Album{
		Title:       title,
		ReleaseDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatorID:   creator.ID,
	}
	require.NoError(t, f.albums.Create(context.Background(), a))
	return a
}

func (f *fixture) genre(t *testing.T, name string) *model.Genre {
	t.Helper()
	g := &model.Genre{Name: name, Description: name + " music"}
	require.NoError(t, f.genres.Create(context.Background(), g))
	return g
}
