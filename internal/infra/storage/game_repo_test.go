package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jose-valero/gamenight-bot/internal/domain"
)

// testDB abre la base de integración si TEST_DATABASE_URL está seteada;
// si no, el test se salta (así la suite corre sin postgres a mano).
func testDB(t *testing.T) *GameRepo {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no seteada")
	}
	db, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))
	return NewGameRepo(db)
}

func TestFetchByQueryMineAlternation(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	const guild = "g-repo-mine"
	_, err := repo.db.ExecContext(ctx, `DELETE FROM games WHERE guild_id = $1`, guild)
	require.NoError(t, err)

	base := time.Now().Add(time.Hour).UnixMilli()
	seed := []Game{
		{ID: "e-dm", GuildID: guild, Players: 4, Timestamp: base + 1, DMID: "u1", DMTag: "user#0001"},
		{ID: "e-rsvp", GuildID: guild, Players: 4, Timestamp: base + 2,
			Reserved: []domain.RSVP{{ID: "otro", Tag: "otro#0002"}, {Tag: "user#0001"}}},
		// entrada histórica: solo texto freeform, sin estructura
		{ID: "e-raw", GuildID: guild, Players: 4, Timestamp: base + 3,
			ReservedRaw: "mesa: @user#0001 y amigos"},
		{ID: "e-ajeno", GuildID: guild, Players: 4, Timestamp: base + 4,
			DMID: "otro", DMTag: "otro#0002", ReservedRaw: "solo otra gente"},
	}
	for _, g := range seed {
		require.NoError(t, repo.Upsert(ctx, g))
	}

	got, err := repo.FetchByQuery(ctx, GameQuery{
		GuildIDs: []string{guild},
		MineID:   "u1",
		MineTag:  "user#0001",
	})
	require.NoError(t, err)

	var ids []string
	for _, g := range got {
		ids = append(ids, g.ID)
	}
	// orden ascendente por timestamp, y el fallback ILIKE pesca e-raw
	assert.Equal(t, []string{"e-dm", "e-rsvp", "e-raw"}, ids)
}

func TestFetchByQueryMineEmptyMatchesAll(t *testing.T) {
	repo := testDB(t)
	ctx := context.Background()

	const guild = "g-repo-all"
	_, err := repo.db.ExecContext(ctx, `DELETE FROM games WHERE guild_id = $1`, guild)
	require.NoError(t, err)

	ts := time.Now().Add(time.Hour).UnixMilli()
	require.NoError(t, repo.Upsert(ctx, Game{ID: "e-all", GuildID: guild, Players: 2, Timestamp: ts}))

	got, err := repo.FetchByQuery(ctx, GameQuery{GuildIDs: []string{guild}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e-all", got[0].ID)
}
