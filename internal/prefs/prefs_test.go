package prefs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavorites(t *testing.T) {
	a := Favorite{ChannelID: "a", Title: "A"}
	b := Favorite{ChannelID: "b", Title: "B"}

	favs := AddFavorite(nil, a)
	favs = AddFavorite(favs, b)
	favs = AddFavorite(favs, Favorite{ChannelID: "a", Title: "dup"})
	require.Len(t, favs, 2)
	assert.Equal(t, "A", favs[0].Title)
	assert.True(t, IsFavorite(favs, "b"))

	removed := RemoveFavorite(favs, "a")
	assert.Equal(t, []Favorite{b}, removed)
	assert.Len(t, favs, 2, "input is not modified")

	favs, on := ToggleFavorite(favs, b)
	assert.False(t, on)
	assert.False(t, IsFavorite(favs, "b"))

	favs, on = ToggleFavorite(favs, b)
	assert.True(t, on)
	assert.True(t, IsFavorite(favs, "b"))
}

func TestTheme(t *testing.T) {
	assert.Equal(t, ThemeLight, ToggleTheme(ThemeDark))
	assert.Equal(t, ThemeDark, ToggleTheme(ThemeLight))
	assert.Equal(t, ThemeLight, ToggleTheme(""))

	_, ok := ParseTheme("blue")
	assert.False(t, ok)
	assert.Equal(t, ThemeDark, Default().Theme)
}

func TestMemoryStore_GetDefaults(t *testing.T) {
	s := NewMemoryStore()
	p, err := s.Get(context.Background(), "v1")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestMemoryStore_UpdateNotifiesSubscribers(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	s := NewMemoryStore()
	events, cancel, err := s.Subscribe(ctx, "v1")
	require.NoError(t, err)
	defer cancel()

	other, cancelOther, err := s.Subscribe(ctx, "v2")
	require.NoError(t, err)
	defer cancelOther()

	p, err := Update(ctx, s, "v1", func(p Preferences) Preferences {
		p.Theme = ToggleTheme(p.Theme)
		p.Favorites = AddFavorite(p.Favorites, Favorite{ChannelID: "x"})
		return p
	})
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, p.Theme)

	select {
	case got := <-events:
		assert.Equal(t, p, got)
	case <-time.After(time.Second):
		t.Fatal("no preferences event")
	}

	select {
	case <-other:
		t.Fatal("other visitor received an event")
	default:
	}

	stored, err := s.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, p, stored)
}

func TestMemoryStore_CancelClosesChannel(t *testing.T) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	s := NewMemoryStore()
	events, _, err := s.Subscribe(ctx, "v1")
	require.NoError(t, err)

	cancelCtx()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}

	require.NoError(t, s.Set(context.Background(), "v1", Default()))
}
