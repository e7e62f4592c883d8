package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"arenasettle/internal/config"
	"arenasettle/internal/infrastructure/database"
	"arenasettle/internal/model"
	"arenasettle/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	self       = "alienrumblex"
	testArena  = "bronze"
	matchClass = "Fire"
)

type custodyAsset struct {
	owner      string
	templateID uint64
}

type fakeCustody struct {
	mu     sync.Mutex
	assets map[uint64]custodyAsset
	err    error
}

func newFakeCustody() *fakeCustody {
	return &fakeCustody{assets: make(map[uint64]custodyAsset)}
}

func (f *fakeCustody) Lookup(_ context.Context, owner string, assetID uint64) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, false, f.err
	}
	a, ok := f.assets[assetID]
	if !ok || a.owner != owner {
		return 0, false, nil
	}
	return a.templateID, true, nil
}

func (f *fakeCustody) set(assetID uint64, owner string, templateID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[assetID] = custodyAsset{owner: owner, templateID: templateID}
}

func (f *fakeCustody) remove(assetID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.assets, assetID)
}

// fixedRandom 总是选中 index % upper
type fixedRandom struct {
	index uint64
}

func (r fixedRandom) Index(_ []byte, upper uint64) uint64 {
	return r.index % upper
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Notify() {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func (n *countingNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type testEnv struct {
	t        *testing.T
	ctx      context.Context
	cfg      *config.Config
	db       *gorm.DB
	clock    *clockwork.FakeClock
	custody  *fakeCustody
	notifier *countingNotifier
	svc      *Services
}

func newTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "arena.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	custody := newFakeCustody()
	notifier := &countingNotifier{}

	engine := NewEngine(db, nil, clock, &cfg.Engine)
	engine.SetNotifier(notifier)

	return &testEnv{
		t:        t,
		ctx:      context.Background(),
		cfg:      cfg,
		db:       db,
		clock:    clock,
		custody:  custody,
		notifier: notifier,
		svc:      NewServices(engine, cfg, custody, fixedRandom{}),
	}
}

func withImmediateDispatch(cfg *config.Config) {
	cfg.Engine.DispatchMode = config.DispatchImmediate
}

func withPayout(mode string) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.Engine.PrizePayout = mode
	}
}

func units(s string) int64 {
	a, err := model.ParseAsset(s)
	if err != nil {
		panic(err)
	}
	return a.Amount
}

func (e *testEnv) register(player string) {
	e.t.Helper()
	_, err := e.svc.Ledger.Register(e.ctx, player, player)
	require.NoError(e.t, err)
}

func (e *testEnv) deposit(player, quantity string) {
	e.t.Helper()
	applied, err := e.svc.Ledger.Deposit(e.ctx, model.TransferNotification{
		From:     player,
		To:       self,
		Quantity: quantity,
		Memo:     "deposit",
	})
	require.NoError(e.t, err)
	require.True(e.t, applied)
}

func (e *testEnv) setArena(name, cost string, fee int) {
	e.t.Helper()
	_, err := e.svc.Admin.SetArena(e.ctx, self, &SetArenaRequest{Name: name, Cost: cost, Fee: fee})
	require.NoError(e.t, err)
}

func (e *testEnv) setCrewTemplate(id uint64, element string, attack, defense uint8) {
	e.t.Helper()
	require.NoError(e.t, e.svc.Admin.SetCrewTemplate(e.ctx, self, &model.CrewTemplate{
		TemplateID: id, Race: "Human", Element: element, Attack: attack, Defense: defense,
	}))
}

func (e *testEnv) setWeaponTemplate(id uint64, class string, attack, defense uint8) {
	e.t.Helper()
	require.NoError(e.t, e.svc.Admin.SetWeaponTemplate(e.ctx, self, &model.WeaponTemplate{
		TemplateID: id, Class: class, Attack: attack, Defense: defense,
	}))
}

// stake 让 player 在托管侧持有并质押一对船员/武器
func (e *testEnv) stake(player string, crewID, crewTemplate, weaponID, weaponTemplate uint64) {
	e.t.Helper()
	e.custody.set(crewID, player, crewTemplate)
	e.custody.set(weaponID, player, weaponTemplate)
	require.NoError(e.t, e.svc.Staking.StakeCrews(e.ctx, player, player, []uint64{crewID}))
	require.NoError(e.t, e.svc.Staking.StakeWeapons(e.ctx, player, player, []uint64{weaponID}))
}

func (e *testEnv) enter(player string, crewID, weaponID uint64) (*EnterResponse, error) {
	return e.svc.Queue.Enter(e.ctx, player, &EnterRequest{
		Player:   player,
		Arena:    testArena,
		CrewID:   crewID,
		WeaponID: weaponID,
	})
}

func playerName(i int) string {
	return fmt.Sprintf("player%d", i)
}

func crewAsset(i int) uint64   { return uint64(1000 + i) }
func weaponAsset(i int) uint64 { return uint64(2000 + i) }

// fillArena n 个玩家注册、充值 100、质押并报名；第 i 个玩家得分为 i+1
func (e *testEnv) fillArena(n int) []string {
	e.t.Helper()

	e.setArena(testArena, "10.0000 TLM", 10)
	e.setWeaponTemplate(1, matchClass, 0, 0)

	players := make([]string, n)
	for i := 0; i < n; i++ {
		p := playerName(i)
		players[i] = p
		crewTemplate := uint64(100 + i)
		e.setCrewTemplate(crewTemplate, matchClass, uint8(i+1), 0)

		e.register(p)
		e.deposit(p, "100.0000 TLM")
		e.stake(p, crewAsset(i), crewTemplate, weaponAsset(i), 1)

		_, err := e.enter(p, crewAsset(i), weaponAsset(i))
		require.NoError(e.t, err)
	}
	return players
}

// runDue 像 WorkDispatcher 一样执行所有到期工作，返回执行失败的错误
func (e *testEnv) runDue() []error {
	e.t.Helper()
	repo := repository.NewWorkRepository(e.db)

	var errs []error
	for round := 0; round < 10; round++ {
		items, err := repo.ListDue(e.ctx, e.clock.Now().UnixMilli(), 100)
		require.NoError(e.t, err)
		if len(items) == 0 {
			return errs
		}
		for _, item := range items {
			if err := e.svc.Battle.ExecuteWork(e.ctx, item); err != nil {
				errs = append(errs, err)
				require.NoError(e.t, e.svc.Battle.MarkWorkFailed(e.ctx, item, err))
			}
		}
	}
	return errs
}

func (e *testEnv) balance(player string) int64 {
	e.t.Helper()
	account, err := e.svc.Ledger.GetAccount(e.ctx, player)
	require.NoError(e.t, err)
	return account.Balance
}

func (e *testEnv) held() int64 {
	e.t.Helper()
	treasury, err := e.svc.Ledger.Treasury(e.ctx)
	require.NoError(e.t, err)
	return treasury.Held
}

// assertConservation 余额非负且总和不超过实际持有量
func (e *testEnv) assertConservation() {
	e.t.Helper()
	var accounts []model.Account
	require.NoError(e.t, e.db.Find(&accounts).Error)
	var total int64
	for _, a := range accounts {
		require.GreaterOrEqual(e.t, a.Balance, int64(0), "balance of %s", a.Player)
		total += a.Balance
	}
	require.LessOrEqual(e.t, total, e.held())
}

func (e *testEnv) workItems(kind string) []model.WorkItem {
	e.t.Helper()
	var items []model.WorkItem
	require.NoError(e.t, e.db.Where("kind = ?", kind).Order("id ASC").Find(&items).Error)
	return items
}

func (e *testEnv) onlyBattle() *model.Battle {
	e.t.Helper()
	var battles []model.Battle
	require.NoError(e.t, e.db.Find(&battles).Error)
	require.Len(e.t, battles, 1)
	return &battles[0]
}

func (e *testEnv) queueDepth() int64 {
	e.t.Helper()
	n, err := repository.NewQueueRepository(e.db).CountByArena(e.ctx, nil, testArena)
	require.NoError(e.t, err)
	return n
}
