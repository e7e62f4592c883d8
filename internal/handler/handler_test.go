package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"arenasettle/internal/config"
	"arenasettle/internal/infrastructure/database"
	"arenasettle/internal/service"
	"arenasettle/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const adminToken = "s3cret"

type noCustody struct{}

func (noCustody) Lookup(context.Context, string, uint64) (uint64, bool, error) {
	return 0, false, nil
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Engine.AdminToken = adminToken

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "http.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	engine := service.NewEngine(db, nil, clockwork.NewFakeClock(), &cfg.Engine)
	svc := service.NewServices(engine, cfg, noCustody{}, nil)
	return SetupRouter(NewHandler(svc, nil), cfg)
}

func do(t *testing.T, r *gin.Engine, method, path string, body interface{}, headers map[string]string) response.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func as(player string) map[string]string {
	return map[string]string{HeaderPrincipal: player}
}

var admin = map[string]string{HeaderAdminToken: adminToken}

func TestHealth(t *testing.T) {
	r := setupRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRegisterAndDetail(t *testing.T) {
	r := setupRouter(t)

	resp := do(t, r, http.MethodPost, "/api/v1/account/register", gin.H{"player": "alice"}, nil)
	assert.Equal(t, response.CodeForbidden, resp.Code)
	assert.Equal(t, "missing authority of alice", resp.Message)

	resp = do(t, r, http.MethodPost, "/api/v1/account/register", gin.H{"player": "alice"}, as("alice"))
	assert.Equal(t, response.CodeSuccess, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/account/register", gin.H{"player": "alice"}, as("alice"))
	assert.Equal(t, response.CodeParamError, resp.Code)
	assert.Equal(t, "user is already registered", resp.Message)

	resp = do(t, r, http.MethodGet, "/api/v1/account/detail?player=alice", nil, nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "0.0000 TLM", data["balance"])

	resp = do(t, r, http.MethodGet, "/api/v1/account/detail?player=bob", nil, nil)
	assert.Equal(t, response.CodeNotFound, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/v1/account/detail", nil, nil)
	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestDepositThroughNotifyAndWithdraw(t *testing.T) {
	r := setupRouter(t)
	do(t, r, http.MethodPost, "/api/v1/account/register", gin.H{"player": "alice"}, as("alice"))

	notify := gin.H{"id": "t1", "from": "alice", "to": "alienrumblex", "quantity": "5.0000 TLM", "memo": "deposit"}
	resp := do(t, r, http.MethodPost, "/api/v1/admin/transfer/notify", notify, as("alice"))
	assert.Equal(t, response.CodeForbidden, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/admin/transfer/notify", notify, admin)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, true, resp.Data.(map[string]interface{})["applied"])

	resp = do(t, r, http.MethodPost, "/api/v1/admin/transfer/notify", notify, admin)
	assert.Equal(t, false, resp.Data.(map[string]interface{})["applied"])

	resp = do(t, r, http.MethodPost, "/api/v1/account/withdraw", gin.H{"player": "alice", "quantity": "9.0000 TLM"}, as("alice"))
	assert.Equal(t, response.CodeParamError, resp.Code)
	assert.Equal(t, "overdrawn balance", resp.Message)

	resp = do(t, r, http.MethodPost, "/api/v1/account/withdraw", gin.H{"player": "alice", "quantity": "2.0000 TLM"}, as("alice"))
	assert.Equal(t, response.CodeSuccess, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/v1/admin/treasury", nil, admin)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Equal(t, "3.0000 TLM", resp.Data.(map[string]interface{})["held"])
}

func TestAdminAuthority(t *testing.T) {
	r := setupRouter(t)
	arena := gin.H{"name": "bronze", "cost": "10.0000 TLM", "fee": 10}

	// 冒充引擎自身的 X-Principal 会被忽略
	resp := do(t, r, http.MethodPost, "/api/v1/admin/arena/set", arena, as("alienrumblex"))
	assert.Equal(t, response.CodeForbidden, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/admin/arena/set", arena, map[string]string{HeaderAdminToken: "wrong"})
	assert.Equal(t, response.CodeForbidden, resp.Code)

	resp = do(t, r, http.MethodPost, "/api/v1/admin/arena/set", arena, admin)
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/v1/arena/list", nil, nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	resp = do(t, r, http.MethodPost, "/api/v1/admin/battle/resolve", gin.H{"arena": "bronze"}, admin)
	assert.Equal(t, response.CodeParamError, resp.Code)
	assert.Equal(t, "not enough qualifying entrants: 0 of 3 required", resp.Message)

	resp = do(t, r, http.MethodPost, "/api/v1/admin/battle/cancel", gin.H{"battle_id": 7}, admin)
	assert.Equal(t, response.CodeNotFound, resp.Code)

	resp = do(t, r, http.MethodGet, "/api/v1/admin/battle/stuck", nil, admin)
	assert.Equal(t, response.CodeSuccess, resp.Code)
}

func TestStakeRequiresCustody(t *testing.T) {
	r := setupRouter(t)

	resp := do(t, r, http.MethodPost, "/api/v1/stake/weapons", gin.H{"owner": "alice", "asset_ids": []uint64{1}}, as("alice"))
	assert.Equal(t, response.CodeNotFound, resp.Code)
	assert.Equal(t, "user does not own asset 1", resp.Message)

	resp = do(t, r, http.MethodPost, "/api/v1/stake/weapons", gin.H{"owner": "alice", "asset_ids": []uint64{}}, as("alice"))
	assert.Equal(t, response.CodeParamError, resp.Code)
}
