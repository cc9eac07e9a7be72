package services

import (
	"accessgov/internal/models"
	apperrors "accessgov/pkg/errors"
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var auditNow = time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC)

func seedAudit(t *testing.T, env *testEnv) {
	t.Helper()
	env.audit.now = func() time.Time { return auditNow }

	entries := []models.AuditLogEntry{
		{ActionType: models.AuditProfileCreated, PerformedBy: "admin@example.com", TargetType: models.TargetProfile, TargetID: "1", TargetName: "Gerência", CreatedAt: auditNow.Add(-2 * time.Hour)},
		{ActionType: models.AuditProfileUpdated, PerformedBy: "rh@example.com", TargetType: models.TargetProfile, TargetID: "1", TargetName: "Gerência", Notes: "ajuste de estoque", CreatedAt: auditNow.AddDate(0, 0, -3)},
		{ActionType: models.AuditCustomRoleCreated, PerformedBy: "admin@example.com", TargetType: models.TargetCustomRole, TargetID: "5", TargetName: "Auditor", CreatedAt: auditNow.AddDate(0, 0, -20)},
		{ActionType: models.AuditUserPermissionChanged, PerformedBy: "approver@example.com", TargetType: models.TargetEmployee, TargetID: "9", TargetName: "Hugo",
			Changes:   datatypes.NewJSONType(models.AuditChanges{Before: map[string]interface{}{"user_status": "ativo"}, After: map[string]interface{}{"user_status": "inativo"}}),
			CreatedAt: auditNow.AddDate(0, 0, -60)},
	}
	for i := range entries {
		require.NoError(t, env.audit.Append(context.Background(), &entries[i]))
	}
}

func TestAudit_QueryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	seedAudit(t, env)

	entries, total, err := env.audit.Query(context.Background(), AuditQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
	}
	assert.Equal(t, models.AuditProfileCreated, entries[0].ActionType)
}

func TestAudit_QueryFilters(t *testing.T) {
	env := newTestEnv(t)
	seedAudit(t, env)

	tests := []struct {
		name  string
		query AuditQuery
		want  int
	}{
		{"action type", AuditQuery{ActionType: models.AuditProfileUpdated}, 1},
		{"target type", AuditQuery{TargetType: models.TargetProfile}, 2},
		{"target id", AuditQuery{TargetType: models.TargetProfile, TargetID: "1"}, 2},
		{"search performer", AuditQuery{Search: "ADMIN@"}, 2},
		{"search target name", AuditQuery{Search: "hugo"}, 1},
		{"search notes", AuditQuery{Search: "estoque"}, 1},
		{"today", AuditQuery{Range: "today"}, 1},
		{"7 days", AuditQuery{Range: "7d"}, 2},
		{"30 days", AuditQuery{Range: "30d"}, 3},
		{"90 days", AuditQuery{Range: "90d"}, 4},
		{"range and search", AuditQuery{Range: "30d", Search: "admin"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, total, err := env.audit.Query(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
			assert.Equal(t, int64(tt.want), total)
		})
	}
}

func TestAudit_ExplicitDateWindow(t *testing.T) {
	env := newTestEnv(t)
	seedAudit(t, env)

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)
	entries, _, err := env.audit.Query(context.Background(), AuditQuery{From: &from, To: &to})
	require.NoError(t, err)
	// 结束日期当天的记录也包含在内
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditProfileUpdated, entries[0].ActionType)
}

func TestAudit_InvalidQueries(t *testing.T) {
	env := newTestEnv(t)
	seedAudit(t, env)
	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for name, q := range map[string]AuditQuery{
		"unknown range":  {Range: "1y"},
		"unknown action": {ActionType: "profile_renamed"},
		"from after to":  {From: &from, To: &to},
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := env.audit.Query(context.Background(), q)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))
		})
	}
}

func TestAudit_Pagination(t *testing.T) {
	env := newTestEnv(t)
	seedAudit(t, env)

	page, total, err := env.audit.Query(context.Background(), AuditQuery{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, page, 1)
	assert.Equal(t, models.AuditUserPermissionChanged, page[0].ActionType)

	page, _, err = env.audit.Query(context.Background(), AuditQuery{Page: 5, PageSize: 3})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestAudit_LargeLogIsNotTruncated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.audit.now = func() time.Time { return auditNow }

	old := auditNow.AddDate(-1, 0, 0)
	require.NoError(t, env.audit.Append(ctx, &models.AuditLogEntry{
		ActionType: models.AuditProfileDeleted, PerformedBy: "admin@example.com",
		TargetType: models.TargetProfile, TargetID: "77", TargetName: "Perfil Antigo", CreatedAt: old,
	}))
	for i := 0; i < 600; i++ {
		require.NoError(t, env.audit.Append(ctx, &models.AuditLogEntry{
			ActionType: models.AuditProfileUpdated, PerformedBy: "rh@example.com",
			TargetType: models.TargetProfile, TargetID: "1", TargetName: "Gerência",
			CreatedAt: auditNow.Add(-time.Duration(i) * time.Minute),
		}))
	}

	from := old.AddDate(0, 0, -1)
	entries, total, err := env.audit.Query(ctx, AuditQuery{From: &from, To: &old})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "Perfil Antigo", entries[0].TargetName)

	entries, total, err = env.audit.Query(ctx, AuditQuery{Search: "antigo", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, entries, 1)

	entries, total, err = env.audit.Query(ctx, AuditQuery{Page: 31, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(601), total)
	require.Len(t, entries, 1)
	assert.Equal(t, "Perfil Antigo", entries[0].TargetName)

	var buf bytes.Buffer
	n, err := env.audit.Export(ctx, AuditQuery{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 601, n)
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 602)
}

func TestAudit_AppendRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t)

	err := env.audit.Append(context.Background(), &models.AuditLogEntry{ActionType: "login"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	assert.Empty(t, env.auditEntries(t))

	// Record吞掉错误
	env.audit.Record(context.Background(), &models.AuditLogEntry{ActionType: "login"})
	assert.Empty(t, env.auditEntries(t))
}

func TestAudit_ExportCSV(t *testing.T) {
	env := newTestEnv(t)
	seedAudit(t, env)

	var buf bytes.Buffer
	n, err := env.audit.Export(context.Background(), AuditQuery{TargetType: models.TargetEmployee}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "action_type", rows[0][2])
	assert.Equal(t, models.AuditUserPermissionChanged, rows[1][2])
	assert.Equal(t, "Hugo", rows[1][6])
	assert.Equal(t, `{"user_status":"ativo"}`, rows[1][9])
	assert.Equal(t, `{"user_status":"inativo"}`, rows[1][10])
}

func TestAudit_StoreFailure(t *testing.T) {
	stores := NewMemoryStores()
	stores.AuditLogs = &failingCollection[models.AuditLogEntry]{Collection: stores.AuditLogs, failFilter: true}
	env := newTestEnvWithStores(t, stores)

	_, _, err := env.audit.Query(context.Background(), AuditQuery{})
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))
}
