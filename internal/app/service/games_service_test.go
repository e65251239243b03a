package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/gamenight-bot/internal/domain"
	"github.com/jose-valero/gamenight-bot/internal/infra/storage"
)

func TestBuildGameQueryPages(t *testing.T) {
	ident := domain.Identity{ID: "u1", Tag: "user#0001"}
	ids := []string{"g1", "g2"}

	q := buildGameQuery(ids, PageUpcoming, ident)
	require.NotNil(t, q.After)
	assert.Nil(t, q.Before)
	assert.Empty(t, q.MineID)

	q = buildGameQuery(ids, PagePastEvents, ident)
	assert.Nil(t, q.After)
	require.NotNil(t, q.Before)

	// my-games: sin cota temporal, con la alternación dm-o-reservado
	q = buildGameQuery(ids, PageMyGames, ident)
	assert.Nil(t, q.After)
	assert.Nil(t, q.Before)
	assert.Equal(t, "u1", q.MineID)
	assert.Equal(t, "user#0001", q.MineTag)
}

func TestProjectGameSlots(t *testing.T) {
	game := storage.Game{
		ID:      "e1",
		GuildID: "g1",
		Players: 5,
		Reserved: []domain.RSVP{
			{ID: "p1", Tag: "p1#0001"}, {ID: "p2", Tag: "p2#0001"},
			{ID: "p3", Tag: "p3#0001"}, {ID: "p4", Tag: "p4#0001"},
			{ID: "p5", Tag: "p5#0001"}, {ID: "p6", Tag: "p6#0001"},
			{ID: "p7", Tag: "p7#0001"},
		},
		Timestamp: time.Now().Add(time.Hour).UnixMilli(),
	}

	p5 := projectGame(game, nil, domain.Identity{ID: "p5", Tag: "p5#0001"}, time.Now())
	assert.Equal(t, 5, p5.Slot)
	assert.True(t, p5.Signedup)
	assert.False(t, p5.Waitlisted)

	p6 := projectGame(game, nil, domain.Identity{ID: "p6", Tag: "p6#0001"}, time.Now())
	assert.Equal(t, 6, p6.Slot)
	assert.False(t, p6.Signedup)
	assert.True(t, p6.Waitlisted)

	ajeno := projectGame(game, nil, domain.Identity{ID: "px", Tag: "px#0001"}, time.Now())
	assert.Zero(t, ajeno.Slot)
	assert.False(t, ajeno.Signedup)
	assert.False(t, ajeno.Waitlisted)
}

func TestProjectGameMatchesByTagForLegacyEntries(t *testing.T) {
	// entradas viejas sin id: el match cae al tag
	game := storage.Game{
		ID:       "e1",
		Players:  2,
		Reserved: []domain.RSVP{{Tag: "p1#0001"}},
	}
	view := projectGame(game, nil, domain.Identity{ID: "p1", Tag: "p1#0001"}, time.Now())
	assert.Equal(t, 1, view.Slot)
	assert.True(t, view.Signedup)
}

func TestProjectGameStripsLeadingAtFromStoredTag(t *testing.T) {
	// otra variante vieja: el tag guardado trae "@" adelante
	game := storage.Game{
		ID:       "e1",
		Players:  2,
		Reserved: []domain.RSVP{{Tag: "@p1#0001"}},
	}
	view := projectGame(game, nil, domain.Identity{ID: "p1", Tag: "p1#0001"}, time.Now())
	assert.Equal(t, 1, view.Slot)
	assert.True(t, view.Signedup)
}

func TestProjectGamePrunesEmptyReservedEntries(t *testing.T) {
	game := storage.Game{
		ID:      "e1",
		Players: 3,
		Reserved: []domain.RSVP{
			{Tag: "   "},
			{ID: "p1", Tag: "p1#0001"},
		},
	}
	view := projectGame(game, nil, domain.Identity{ID: "p1", Tag: "p1#0001"}, time.Now())
	require.Len(t, view.Reserved, 1)
	assert.Equal(t, 1, view.Slot)
}

func TestProjectGameMomentFields(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	game := storage.Game{
		ID:             "e1",
		Players:        4,
		Timestamp:      time.Date(2026, time.March, 10, 23, 30, 0, 0, time.UTC).UnixMilli(),
		TimezoneOffset: -5,
	}
	view := projectGame(game, nil, domain.Identity{}, now)
	assert.Equal(t, "2026-03-10T18:30:00-05:00", view.ISODate)
	assert.Equal(t, "Tuesday, March 10, 2026 6:30 PM", view.LongDate)
	assert.Equal(t, "Today at 6:30 PM", view.CalendarDate)
	assert.Equal(t, "in 11 hours", view.FromNow)
}

func TestToggleSignupRoundTrip(t *testing.T) {
	before := []domain.RSVP{{ID: "p1", Tag: "p1#0001"}, {ID: "p2", Tag: "p2#0001"}}
	games := newFakeGames(storage.Game{ID: "e1", GuildID: "g1", Players: 5, Reserved: before})
	svc := NewGameService(&fakeDir{}, newFakeConfigs(), games, &fakeNotes{})

	ident := domain.Identity{ID: "u1", Tag: "user#0001"}

	view, err := svc.ToggleSignup(context.Background(), "e1", ident)
	require.NoError(t, err)
	require.Len(t, view.Reserved, 3)
	assert.Equal(t, "u1", view.Reserved[2].ID) // se anota al FINAL
	assert.True(t, view.Signedup)

	view, err = svc.ToggleSignup(context.Background(), "e1", ident)
	require.NoError(t, err)
	// el round-trip deja la lista exactamente como estaba
	assert.Equal(t, before, view.Reserved)
	assert.Zero(t, view.Slot)
}

func TestToggleSignupDropoutShiftsLaterSlots(t *testing.T) {
	games := newFakeGames(storage.Game{
		ID: "e1", GuildID: "g1", Players: 2,
		Reserved: []domain.RSVP{
			{ID: "p1", Tag: "p1#0001"},
			{ID: "p2", Tag: "p2#0001"},
			{ID: "p3", Tag: "p3#0001"},
		},
	})
	svc := NewGameService(&fakeDir{}, newFakeConfigs(), games, &fakeNotes{})

	// p1 se baja: p3 pasa de waitlist a anotado
	_, err := svc.ToggleSignup(context.Background(), "e1", domain.Identity{ID: "p1", Tag: "p1#0001"})
	require.NoError(t, err)

	p3, err := svc.Game(context.Background(), "e1", domain.Identity{ID: "p3", Tag: "p3#0001"})
	require.NoError(t, err)
	assert.Equal(t, 2, p3.Slot)
	assert.True(t, p3.Signedup)
	assert.False(t, p3.Waitlisted)
}

func TestToggleSignupDropoutNotifies(t *testing.T) {
	cfg := storage.NewGuildConfig("g1")
	cfg.NotifyDropout = true
	games := newFakeGames(storage.Game{
		ID: "e1", GuildID: "g1", Players: 5,
		Reserved: []domain.RSVP{{ID: "u1", Tag: "user#0001"}},
	})
	notes := &fakeNotes{}
	svc := NewGameService(&fakeDir{}, newFakeConfigs(cfg), games, notes)

	_, err := svc.ToggleSignup(context.Background(), "e1", domain.Identity{ID: "u1", Tag: "user#0001"})
	require.NoError(t, err)
	require.Len(t, notes.events, 1)
	assert.Equal(t, "dropout", notes.events[0])
}

func TestSaveGameRequiresPostingPermission(t *testing.T) {
	member := domain.Member{ID: "u1", Tag: "user#0001"} // sin roles
	g := testGuild("g1", member)

	cfg := storage.NewGuildConfig("g1")
	cfg.GameTemplates = []storage.GameTemplate{{ID: "gm", Name: "GM Only", IsDefault: true, Role: "Organizer"}}

	svc := NewGameService(&fakeDir{guilds: []domain.Guild{g}}, newFakeConfigs(cfg), newFakeGames(), &fakeNotes{})

	_, err := svc.SaveGame(context.Background(), domain.Identity{ID: "u1", Tag: "user#0001"}, storage.Game{
		GuildID: "g1", ChannelID: "g1-ch1", Adventure: "La cripta", Players: 4,
	})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestSaveGameAssignsIDAndGM(t *testing.T) {
	member := domain.Member{ID: "u1", Tag: "user#0001"}
	g := testGuild("g1", member)
	games := newFakeGames()
	svc := NewGameService(&fakeDir{guilds: []domain.Guild{g}}, newFakeConfigs(), games, &fakeNotes{})

	view, err := svc.SaveGame(context.Background(), domain.Identity{ID: "u1", Tag: "user#0001"}, storage.Game{
		GuildID: "g1", ChannelID: "g1-ch1", Adventure: "La cripta", Players: 4,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "u1", view.DMID)
	assert.Equal(t, "user#0001", view.DMTag)
	assert.Equal(t, 1, view.MinPlayers)
}

func TestSaveGameEditOnlyByGMOrAdmin(t *testing.T) {
	member := domain.Member{ID: "u2", Tag: "otro#0002"}
	g := testGuild("g1", member)
	games := newFakeGames(storage.Game{ID: "e1", GuildID: "g1", DMID: "u1", Players: 4})
	svc := NewGameService(&fakeDir{guilds: []domain.Guild{g}}, newFakeConfigs(), games, &fakeNotes{})

	_, err := svc.SaveGame(context.Background(), domain.Identity{ID: "u2", Tag: "otro#0002"}, storage.Game{
		ID: "e1", GuildID: "g1", Players: 6,
	})
	require.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestSaveGameValidatesPlayers(t *testing.T) {
	member := domain.Member{ID: "u1", Tag: "user#0001"}
	g := testGuild("g1", member)
	svc := NewGameService(&fakeDir{guilds: []domain.Guild{g}}, newFakeConfigs(), newFakeGames(), &fakeNotes{})

	_, err := svc.SaveGame(context.Background(), domain.Identity{ID: "u1", Tag: "user#0001"}, storage.Game{
		GuildID: "g1", Players: 0,
	})
	require.Error(t, err)

	_, err = svc.SaveGame(context.Background(), domain.Identity{ID: "u1", Tag: "user#0001"}, storage.Game{
		GuildID: "g1", Players: 3, MinPlayers: 5,
	})
	require.Error(t, err)
}

func TestDeleteGameOnlyByGMOrAdmin(t *testing.T) {
	member := domain.Member{ID: "u2", Tag: "otro#0002"}
	g := testGuild("g1", member)
	games := newFakeGames(storage.Game{ID: "e1", GuildID: "g1", DMID: "u1", Players: 4})
	svc := NewGameService(&fakeDir{guilds: []domain.Guild{g}}, newFakeConfigs(), games, &fakeNotes{})

	err := svc.DeleteGame(context.Background(), domain.Identity{ID: "u2", Tag: "otro#0002"}, "e1")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	err = svc.DeleteGame(context.Background(), domain.Identity{ID: "u1", Tag: "user#0001"}, "e1")
	require.Error(t, err) // u1 no es miembro en este snapshot
}
