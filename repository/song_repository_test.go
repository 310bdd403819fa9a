package repository

import (
	"context"
	"testing"

	"Sonora/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSongCreateWithGenres(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "artist", true)
	rock := f.genre(t, "Rock")

	song := f.song(t, artist, "Anthem", 200, rock.ID, 424242)

	got, err := f.songs.GetByID(ctx, song.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Genres, 1, "unknown genre ids are ignored")
	assert.Equal(t, "Rock", got.Genres[0].Name)

	byPath, err := f.songs.GetByFilePath(ctx, "songs/Anthem.mp3")
	require.NoError(t, err)
	require.NotNil(t, byPath)
	assert.Equal(t, song.ID, byPath.ID)
}

func TestSongReplaceGenresAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "artist", true)
	rock := f.genre(t, "Rock")
	jazz := f.genre(t, "Jazz")
	song := f.song(t, artist, "Anthem", 200, rock.ID)

	require.NoError(t, f.songs.ReplaceGenres(ctx, song, []int64{jazz.ID}))
	got, err := f.songs.GetByID(ctx, song.ID)
	require.NoError(t, err)
	require.Len(t, got.Genres, 1)
	assert.Equal(t, "Jazz", got.Genres[0].Name)

	jazzSongs, err := f.songs.ListByGenre(ctx, jazz.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, jazzSongs, 1)

	require.NoError(t, f.songs.Delete(ctx, song.ID))
	got, err = f.songs.GetByID(ctx, song.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	jazzSongs, err = f.songs.ListByGenre(ctx, jazz.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, jazzSongs)
}

func TestSongLikeCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "artist", true)
	fan := f.user(t, "fan", false)
	song := f.song(t, artist, "Anthem", 200)

	require.NoError(t, f.songs.Like(ctx, fan.ID, song.ID))
	assert.ErrorIs(t, f.songs.Like(ctx, fan.ID, song.ID), ErrDuplicate)

	got, err := f.songs.GetByID(ctx, song.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.LikeCount)

	liked, err := f.songs.LikedAmong(ctx, fan.ID, []int64{song.ID, 777})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{song.ID: true, 777: false}, liked)

	likedSongs, err := f.songs.ListLiked(ctx, fan.ID, 0, 10)
	require.NoError(t, err)
	assert.Len(t, likedSongs, 1)

	require.NoError(t, f.songs.Unlike(ctx, fan.ID, song.ID))
	assert.ErrorIs(t, f.songs.Unlike(ctx, fan.ID, song.ID), ErrNotFound)

	got, err = f.songs.GetByID(ctx, song.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikeCount)
}

func TestSongUnlikeNeverGoesNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "artist", true)
	fan := f.user(t, "fan", false)
	song := f.song(t, artist, "Anthem", 200)

	require.NoError(t, f.songs.Like(ctx, fan.ID, song.ID))
	// 计数被外部改成 0 后再取消点赞
	require.NoError(t, f.db.Model(&model.Song{}).Where("id = ?", song.ID).UpdateColumn("like_count", 0).Error)
	require.NoError(t, f.songs.Unlike(ctx, fan.ID, song.ID))

	got, err := f.songs.GetByID(ctx, song.ID)
	require.NoError(t, err)
	assert.Zero(t, got.LikeCount)
}

func TestSongSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	artist := f.user(t, "Nightwalker", true)
	other := f.user(t, "daylight", true)
	rock := f.genre(t, "Rock")
	album := f.album(t, other, "Midnight Sessions")

	f.song(t, artist, "Short Song", 90, rock.ID)
	f.song(t, other, "Long Ballad", 400)
	onAlbum := f.song(t, other, "Track One", 200)
	require.NoError(t, f.albums.AddSong(ctx, album.ID, onAlbum.ID))

	songs, err := f.songs.Search(ctx, model.SongFilter{Query: "NIGHT"}, 0, 20)
	require.NoError(t, err)
	titles := songTitles(songs)
	assert.ElementsMatch(t, []string{"Short Song", "Track One"}, titles, "matches creator name and album title")

	songs, err = f.songs.Search(ctx, model.SongFilter{Query: "song", Genre: "rock"}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"Short Song"}, songTitles(songs))

	minDur, maxDur := 100, 300
	songs, err = f.songs.Search(ctx, model.SongFilter{Query: "", MinDuration: &minDur, MaxDuration: &maxDur}, 0, 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"Track One"}, songTitles(songs))

	suggestions, err := f.songs.TitlesWithPrefix(ctx, "lo", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Long Ballad"}, suggestions)
}

func songTitles(songs []*model.Song) []string {
	titles := make([]string, 0, len(songs))
	for _, s := range songs {
		titles = append(titles, s.Title)
	}
	return titles
}
