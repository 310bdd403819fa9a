package repository

import (
	"context"
	"testing"

	"Sonora/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumSongsAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "artist", true)
	album := f.album(t, artist, "First")
	song := f.song(t, artist, "Opener", 180)

	require.NoError(t, f.albums.AddSong(ctx, album.ID, song.ID))

	got, err := f.albums.GetWithSongs(ctx, album.ID)
	require.NoError(t, err)
	require.Len(t, got.Songs, 1)
	assert.Equal(t, "Opener", got.Songs[0].Title)

	assert.ErrorIs(t, f.albums.RemoveSong(ctx, album.ID+1, song.ID), ErrNotFound)
	require.NoError(t, f.albums.RemoveSong(ctx, album.ID, song.ID))

	require.NoError(t, f.albums.AddSong(ctx, album.ID, song.ID))
	require.NoError(t, f.albums.Delete(ctx, album.ID))

	left, err := f.songs.GetByID(ctx, song.ID)
	require.NoError(t, err)
	require.NotNil(t, left, "songs survive album deletion")
	assert.Nil(t, left.AlbumID)
}

func TestAlbumLikes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "artist", true)
	fan := f.user(t, "fan", false)
	album := f.album(t, artist, "First")

	require.NoError(t, f.albums.Like(ctx, fan.ID, album.ID))
	assert.ErrorIs(t, f.albums.Like(ctx, fan.ID, album.ID), ErrDuplicate)

	liked, err := f.albums.ListLiked(ctx, fan.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, int64(1), liked[0].LikeCount)

	require.NoError(t, f.albums.Unlike(ctx, fan.ID, album.ID))
	assert.ErrorIs(t, f.albums.Unlike(ctx, fan.ID, album.ID), ErrNotFound)
}

func TestAlbumSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "Solar", true)
	f.album(t, artist, "Eclipse")
	other := f.user(t, "lunar", true)
	f.album(t, other, "Phases")

	albums, err := f.albums.Search(ctx, "solar", 0, 20)
	require.NoError(t, err)
	require.Len(t, albums, 1)
	assert.Equal(t, "Eclipse", albums[0].Title)

	titles, err := f.albums.TitlesWithPrefix(ctx, "PH", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Phases"}, titles)
}

func TestPlaylistScopedToOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner", false)
	stranger := f.user(t, "stranger", false)
	artist := f.user(t, "artist", true)
	song := f.song(t, artist, "Tune", 120)

	pl := &model.Playlist{Name: "Road trip", Description: "long drives", OwnerID: owner.ID}
	require.NoError(t, f.playlists.Create(ctx, pl))

	got, err := f.playlists.GetForOwner(ctx, pl.ID, stranger.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = f.playlists.GetForOwner(ctx, pl.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, f.playlists.AddSong(ctx, got, song))
	has, err := f.playlists.HasSong(ctx, pl.ID, song.ID)
	require.NoError(t, err)
	assert.True(t, has)

	got, err = f.playlists.GetForOwner(ctx, pl.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, got.Songs, 1)

	require.NoError(t, f.playlists.RemoveSong(ctx, got, song))
	has, err = f.playlists.HasSong(ctx, pl.ID, song.ID)
	require.NoError(t, err)
	assert.False(t, has)

	found, err := f.playlists.Search(ctx, "DRIVES", 0, 20)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, f.playlists.Delete(ctx, got))
	lists, err := f.playlists.ListByOwner(ctx, owner.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestPopularGenres(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "artist", true)
	rock := f.genre(t, "Rock")
	jazz := f.genre(t, "Jazz")
	f.genre(t, "Polka")

	f.song(t, artist, "a", 100, rock.ID)
	f.song(t, artist, "b", 100, rock.ID, jazz.ID)
	f.song(t, artist, "c", 100, rock.ID)

	popular, err := f.genres.Popular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "Rock", popular[0].Name)
	assert.Equal(t, int64(3), popular[0].SongCount)
	assert.Equal(t, "Jazz", popular[1].Name)
	assert.Equal(t, int64(1), popular[1].SongCount)

	require.NoError(t, f.genres.Delete(ctx, rock.ID))
	popular, err = f.genres.Popular(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, popular, 2)

	byName, err := f.genres.GetByName(ctx, "Jazz")
	require.NoError(t, err)
	require.NotNil(t, byName)

	found, err := f.genres.Search(ctx, "olk", 0, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Polka", found[0].Name)
}
