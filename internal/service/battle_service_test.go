package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 8 人报名、报名费 10、抽成 10%：每人剩 90，胜者得 72
func TestBattleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	players := env.fillArena(8)

	for _, p := range players {
		assert.Equal(t, units("90.0000 TLM"), env.balance(p))
	}
	assert.EqualValues(t, 8, env.queueDepth())

	require.Empty(t, env.runDue())
	assert.EqualValues(t, 0, env.queueDepth())

	battle := env.onlyBattle()
	assert.Equal(t, model.BattleStatusResolved, battle.Status)
	assert.Equal(t, players, battle.Players)
	assert.Len(t, battle.Survivors, 8)
	require.Len(t, battle.Contenders, 3)
	assert.Equal(t, []string{"player7", "player6", "player5"},
		[]string{battle.Contenders[0].Player, battle.Contenders[1].Player, battle.Contenders[2].Player})
	assert.Equal(t, "8.0", battle.Contenders[0].Score)
	assert.Empty(t, battle.Winner)

	finalize := env.workItems(model.WorkKindFinalize)
	require.Len(t, finalize, 1)
	assert.Equal(t, "player7", finalize[0].Winner)
	assert.Equal(t, env.clock.Now().Add(60*time.Second).UnixMilli(), finalize[0].DueAt)

	// 延迟模式：时间未到不会结算
	require.Empty(t, env.runDue())
	assert.Equal(t, model.BattleStatusResolved, env.onlyBattle().Status)

	env.clock.Advance(60 * time.Second)
	require.Empty(t, env.runDue())

	battle = env.onlyBattle()
	assert.Equal(t, model.BattleStatusFinalized, battle.Status)
	assert.Equal(t, "player7", battle.Winner)
	assert.Equal(t, units("72.0000 TLM"), battle.Prize)
	require.NotNil(t, battle.FinalizedAt)

	for _, p := range players {
		want := units("90.0000 TLM")
		if p == "player7" {
			want = units("162.0000 TLM")
		}
		assert.Equal(t, want, env.balance(p), p)
	}

	winner, err := env.svc.Ledger.GetAccount(env.ctx, "player7")
	require.NoError(t, err)
	assert.EqualValues(t, 1, winner.WinCount)
	assert.EqualValues(t, 1, winner.BattleCount)

	assert.Equal(t, units("800.0000 TLM"), env.held())
	env.assertConservation()
}

func TestImmediateDispatchFinalizesInOnePass(t *testing.T) {
	env := newTestEnv(t, withImmediateDispatch)
	env.fillArena(8)

	require.Empty(t, env.runDue())
	battle := env.onlyBattle()
	assert.Equal(t, model.BattleStatusFinalized, battle.Status)
	assert.Equal(t, "player7", battle.Winner)
}

func TestContenderTieBreakByPlayerName(t *testing.T) {
	env := newTestEnv(t)
	env.setArena(testArena, "10.0000 TLM", 0)
	env.setWeaponTemplate(1, matchClass, 5, 5)
	env.setWeaponTemplate(2, "Water", 5, 5)
	env.setCrewTemplate(10, matchClass, 5, 5)

	// 同分时按名字升序；元素不匹配的得分减半
	names := []string{"dave", "carol", "bob", "alice", "erin"}
	weapons := map[string]uint64{"dave": 1, "carol": 1, "bob": 2, "alice": 1, "erin": 2}
	for i, p := range names {
		env.register(p)
		env.deposit(p, "10.0000 TLM")
		env.stake(p, crewAsset(i), 10, weaponAsset(i), weapons[p])
		_, err := env.enter(p, crewAsset(i), weaponAsset(i))
		require.NoError(t, err)
	}

	result, err := env.svc.Battle.Resolve(env.ctx, self, testArena)
	require.NoError(t, err)
	assert.Equal(t, []model.Contender{
		{Player: "alice", Score: "20.0"},
		{Player: "carol", Score: "20.0"},
		{Player: "dave", Score: "20.0"},
	}, result.Contenders)
	assert.Equal(t, "alice", result.Winner)
	assert.Empty(t, result.Forfeited)
}

func TestResolveNeedsThreeQualifyingEntrants(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(8)

	// 6 个玩家在托管侧不再持有船员
	for i := 0; i < 6; i++ {
		env.custody.remove(crewAsset(i))
	}

	errs := env.runDue()
	require.Len(t, errs, 1)
	assert.True(t, IsKind(errs[0], KindValidation))
	assert.EqualError(t, errs[0], "not enough qualifying entrants: 2 of 3 required")

	// 整个工作单元回滚：队列原样保留，没有对战
	assert.EqualValues(t, 8, env.queueDepth())
	var count int64
	require.NoError(t, env.db.Model(&model.Battle{}).Count(&count).Error)
	assert.Zero(t, count)

	items := env.workItems(model.WorkKindResolve)
	require.Len(t, items, 1)
	assert.Equal(t, model.WorkStatusFailed, items[0].Status)
	assert.Contains(t, items[0].LastError, "not enough qualifying entrants")
}

func TestForfeitedEntriesAreNotRefunded(t *testing.T) {
	env := newTestEnv(t, withImmediateDispatch)
	players := env.fillArena(8)

	env.custody.remove(weaponAsset(7))
	require.NoError(t, env.svc.Admin.RemoveCrewTemplate(env.ctx, self, 106))

	require.Empty(t, env.runDue())

	battle := env.onlyBattle()
	assert.Equal(t, players, battle.Players)
	assert.Len(t, battle.Survivors, 6)
	assert.NotContains(t, battle.Survivors, "player7")
	assert.NotContains(t, battle.Survivors, "player6")
	assert.Equal(t, "player5", battle.Winner)

	// 奖金仍按报名人数计算
	assert.Equal(t, units("72.0000 TLM"), battle.Prize)
	assert.Equal(t, units("90.0000 TLM"), env.balance("player7"))
	assert.Equal(t, units("90.0000 TLM"), env.balance("player6"))
	assert.Equal(t, units("162.0000 TLM"), env.balance("player5"))
	env.assertConservation()
}

func TestFinalizeTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(8)
	require.Empty(t, env.runDue())
	battle := env.onlyBattle()

	_, err := env.svc.Battle.Finalize(env.ctx, self, battle.ID, "player6")
	require.NoError(t, err)

	_, err = env.svc.Battle.Finalize(env.ctx, self, battle.ID, "player6")
	assert.True(t, IsKind(err, KindValidation))
	assert.EqualError(t, err, "battle 1 already finalized")
	assert.Equal(t, units("162.0000 TLM"), env.balance("player6"))

	// 到期的结算工作也会被拒绝
	env.clock.Advance(time.Minute)
	errs := env.runDue()
	require.Len(t, errs, 1)
	assert.Equal(t, units("162.0000 TLM"), env.balance("player6"))
	assert.Equal(t, units("90.0000 TLM"), env.balance("player7"))
	env.assertConservation()
}

func TestFinalizeRejectsNonContender(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(8)
	require.Empty(t, env.runDue())
	battle := env.onlyBattle()

	_, err := env.svc.Battle.Finalize(env.ctx, self, battle.ID, "player0")
	assert.True(t, IsKind(err, KindValidation))

	_, err = env.svc.Battle.Finalize(env.ctx, self, 99, "player7")
	assert.True(t, IsKind(err, KindNotFound))

	_, err = env.svc.Battle.Finalize(env.ctx, "player7", battle.ID, "player7")
	assert.True(t, IsKind(err, KindAuthorization))
}

func TestArenaRemovedBeforeFinalize(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(8)
	require.Empty(t, env.runDue())
	battle := env.onlyBattle()

	require.NoError(t, env.svc.Admin.RemoveArena(env.ctx, self, testArena))

	env.clock.Advance(time.Minute)
	errs := env.runDue()
	require.Len(t, errs, 1)
	assert.True(t, IsKind(errs[0], KindNotFound))
	assert.EqualError(t, errs[0], "arena not found")

	finalize := env.workItems(model.WorkKindFinalize)
	require.Len(t, finalize, 1)
	assert.Equal(t, model.WorkStatusFailed, finalize[0].Status)
	assert.Equal(t, units("90.0000 TLM"), env.balance("player7"))

	// 人工补偿：按快照退报名费
	resp, err := env.svc.Admin.CancelBattle(env.ctx, self, battle.ID)
	require.NoError(t, err)
	assert.Len(t, resp.Refunded, 8)
	assert.Equal(t, "10.0000 TLM", resp.Amount)
	for i := 0; i < 8; i++ {
		assert.Equal(t, units("100.0000 TLM"), env.balance(playerName(i)))
	}
	assert.Equal(t, model.BattleStatusCancelled, env.onlyBattle().Status)
	assert.Equal(t, model.WorkStatusCancelled, env.workItems(model.WorkKindFinalize)[0].Status)

	_, err = env.svc.Admin.CancelBattle(env.ctx, self, battle.ID)
	assert.True(t, IsKind(err, KindValidation))

	_, err = env.svc.Battle.Finalize(env.ctx, self, battle.ID, "player7")
	assert.True(t, IsKind(err, KindValidation))
	env.assertConservation()
}

func TestTransferPayout(t *testing.T) {
	env := newTestEnv(t, withImmediateDispatch, withPayout(config.PayoutTransfer))
	env.fillArena(8)
	require.Empty(t, env.runDue())

	battle := env.onlyBattle()
	assert.Equal(t, model.BattleStatusFinalized, battle.Status)
	assert.Equal(t, units("90.0000 TLM"), env.balance("player7"))
	assert.Equal(t, units("728.0000 TLM"), env.held())

	var messages []model.OutboxMessage
	require.NoError(t, env.db.Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, "battle:1", messages[0].MessageKey)

	var req model.TransferRequest
	require.NoError(t, json.Unmarshal([]byte(messages[0].Payload), &req))
	assert.Equal(t, model.TransferRequest{To: "player7", Quantity: "72.0000 TLM", Memo: "alienrumblex prize"}, req)
	env.assertConservation()
}

func TestResolveRequiresEngineAuthority(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(3)

	_, err := env.svc.Battle.Resolve(env.ctx, "player0", testArena)
	assert.True(t, IsKind(err, KindAuthorization))

	_, err = env.svc.Battle.Resolve(env.ctx, self, "nowhere")
	assert.True(t, IsKind(err, KindNotFound))

	result, err := env.svc.Battle.Resolve(env.ctx, self, testArena)
	require.NoError(t, err)
	assert.Len(t, result.Contenders, 3)
	assert.Equal(t, env.clock.Now().Add(time.Minute), result.FinalizeDueAt)
}

func TestComputePrize(t *testing.T) {
	cases := []struct {
		cost         int64
		participants int
		fee          uint8
		want         int64
	}{
		{units("10.0000 TLM"), 8, 10, units("72.0000 TLM")},
		{3, 3, 10, 8},
		{units("10.0000 TLM"), 8, 100, 0},
		{units("10.0000 TLM"), 8, 0, units("80.0000 TLM")},
	}
	for _, c := range cases {
		got, err := ComputePrize(c.cost, c.participants, c.fee)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := ComputePrize(model.MaxAssetAmount, 8, 0)
	assert.True(t, IsKind(err, KindInvariant))
}

func TestScore(t *testing.T) {
	crew := &model.CrewTemplate{Element: "Fire", Attack: 3, Defense: 4}

	assert.Equal(t, "14", Score(crew, &model.WeaponTemplate{Class: "Fire", Attack: 5, Defense: 2}).String())
	assert.Equal(t, "7", Score(crew, &model.WeaponTemplate{Class: "Earth", Attack: 5, Defense: 2}).String())
	assert.Equal(t, "3.5", Score(crew, &model.WeaponTemplate{Class: "Earth", Attack: 0, Defense: 0}).String())
}

func TestBattleQueries(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(8)
	require.Empty(t, env.runDue())

	battle, err := env.svc.Battle.GetBattle(env.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, testArena, battle.Arena)

	_, err = env.svc.Battle.GetBattle(env.ctx, 2)
	assert.True(t, IsKind(err, KindNotFound))

	list, total, err := env.svc.Battle.ListBattles(env.ctx, testArena, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, list, 1)

	list, total, err = env.svc.Battle.ListBattles(env.ctx, "silver", 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

type seedRecorder struct {
	seeds [][]byte
}

func (r *seedRecorder) Index(seed []byte, upper uint64) uint64 {
	r.seeds = append(r.seeds, seed)
	return 0
}

func TestManualResolveSeedIsPerRequest(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(3)

	rec := &seedRecorder{}
	battles := NewBattleService(env.svc.Engine, env.cfg, env.svc.Ledger, env.custody, rec)

	_, err := battles.Resolve(env.ctx, self, testArena)
	require.NoError(t, err)

	for i := 3; i < 6; i++ {
		p := playerName(i)
		env.setCrewTemplate(uint64(100+i), matchClass, uint8(i+1), 0)
		env.register(p)
		env.deposit(p, "100.0000 TLM")
		env.stake(p, crewAsset(i), uint64(100+i), weaponAsset(i), 1)
		_, err := env.enter(p, crewAsset(i), weaponAsset(i))
		require.NoError(t, err)
	}
	_, err = battles.Resolve(env.ctx, self, testArena)
	require.NoError(t, err)

	require.Len(t, rec.seeds, 2)
	for _, seed := range rec.seeds {
		assert.True(t, strings.HasPrefix(string(seed), "manual:bronze:"), string(seed))
	}
	assert.NotEqual(t, rec.seeds[0], rec.seeds[1])
}

func TestPrizeUsesCurrentArenaConfig(t *testing.T) {
	env := newTestEnv(t)
	env.fillArena(8)
	require.Empty(t, env.runDue())

	// 开战后、结算前改配置：奖金按新配置算，快照仍是开战时的 10
	env.setArena(testArena, "5.0000 TLM", 50)
	env.clock.Advance(time.Minute)
	require.Empty(t, env.runDue())

	battle := env.onlyBattle()
	assert.Equal(t, model.BattleStatusFinalized, battle.Status)
	assert.Equal(t, units("10.0000 TLM"), battle.EntryAmount)
	assert.Equal(t, units("20.0000 TLM"), battle.Prize)
	assert.Equal(t, units("110.0000 TLM"), env.balance("player7"))
	env.assertConservation()
}
