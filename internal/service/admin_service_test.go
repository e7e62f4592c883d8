package service

import (
	"testing"

	"arenasettle/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetArenaValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  SetArenaRequest
		msg  string
	}{
		{"empty name", SetArenaRequest{Cost: "1.0000 TLM"}, "invalid arena name"},
		{"bad quantity", SetArenaRequest{Name: "a", Cost: "1 TLM"}, "invalid quantity"},
		{"zero cost", SetArenaRequest{Name: "a", Cost: "0.0000 TLM"}, "cost must be positive"},
		{"other symbol", SetArenaRequest{Name: "a", Cost: "1.0000 WAX"}, "invalid symbol"},
		{"fee too high", SetArenaRequest{Name: "a", Cost: "1.0000 TLM", Fee: 101}, "fee must be between 0 and 100"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := c.req
			_, err := env.svc.Admin.SetArena(env.ctx, self, &req)
			assert.True(t, IsKind(err, KindValidation))
			assert.EqualError(t, err, c.msg)
		})
	}

	_, err := env.svc.Admin.SetArena(env.ctx, "player0", &SetArenaRequest{Name: "a", Cost: "1.0000 TLM"})
	assert.True(t, IsKind(err, KindAuthorization))
}

func TestSetArenaUpsert(t *testing.T) {
	env := newTestEnv(t)

	arena, err := env.svc.Admin.SetArena(env.ctx, self, &SetArenaRequest{Name: testArena, Cost: "10.0000 TLM", Fee: 5})
	require.NoError(t, err)
	assert.Equal(t, "alien.worlds", arena.CostContract)

	_, err = env.svc.Admin.SetArena(env.ctx, self, &SetArenaRequest{Name: testArena, Cost: "20.0000 TLM", Fee: 0})
	require.NoError(t, err)

	arenas, err := env.svc.Admin.ListArenas(env.ctx)
	require.NoError(t, err)
	require.Len(t, arenas, 1)
	assert.Equal(t, units("20.0000 TLM"), arenas[0].CostAmount)
	assert.Zero(t, arenas[0].Fee)

	require.NoError(t, env.svc.Admin.RemoveArena(env.ctx, self, testArena))
	err = env.svc.Admin.RemoveArena(env.ctx, self, testArena)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)

	env.setWeaponTemplate(1, "Fire", 3, 2)
	env.setCrewTemplate(7, "Fire", 1, 1)
	env.setCrewTemplate(7, "Water", 4, 4)

	weapons, crews, err := env.svc.Admin.ListTemplates(env.ctx)
	require.NoError(t, err)
	require.Len(t, weapons, 1)
	require.Len(t, crews, 1)
	assert.Equal(t, "Water", crews[0].Element)

	err = env.svc.Admin.SetWeaponTemplate(env.ctx, self, &model.WeaponTemplate{TemplateID: 0, Class: "Fire"})
	assert.True(t, IsKind(err, KindValidation))

	err = env.svc.Admin.RemoveWeaponTemplate(env.ctx, self, 99)
	assert.True(t, IsKind(err, KindNotFound))
	require.NoError(t, env.svc.Admin.RemoveCrewTemplate(env.ctx, self, 7))
}

func TestResetKeepsBalances(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(8)
	require.Empty(t, env.runDue())

	env.setCrewTemplate(200, matchClass, 1, 0)
	env.register("late")
	env.deposit("late", "10.0000 TLM")
	env.stake("late", 3000, 200, 4000, 1)
	_, err := env.enter("late", 3000, 4000)
	require.NoError(t, err)

	resp, err := env.svc.Admin.Reset(env.ctx, self)
	require.NoError(t, err)
	assert.Equal(t, &ResetResponse{QueueEntries: 1, Battles: 1, WorkItems: 1}, resp)

	assert.EqualValues(t, 0, env.queueDepth())
	assert.Equal(t, model.WorkStatusCancelled, env.workItems(model.WorkKindFinalize)[0].Status)
	assert.Zero(t, env.balance("late"))
	assert.Equal(t, units("90.0000 TLM"), env.balance("player0"))
	env.assertConservation()

	_, err = env.svc.Admin.Reset(env.ctx, "late")
	assert.True(t, IsKind(err, KindAuthorization))
}
