package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gaihekinavi/platform/internal/fees"
	partnerdomain "github.com/gaihekinavi/platform/internal/partner/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPartnerService(t *testing.T) (partnerdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&partnerdomain.Partner{}, &partnerdomain.FeePlan{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{DB: dbConn, Log: zap.NewNop(), GenID: node}), dbConn, node
}

func createPartner(t *testing.T, dbConn *gorm.DB, node *snowflake.Node, planID *snowflake.ID) partnerdomain.Partner {
	t.Helper()
	partner := partnerdomain.Partner{
		ID:          node.Generate(),
		CompanyName: "テスト塗装株式会社",
		Email:       fmt.Sprintf("partner-%s@example.com", node.Generate()),
		Active:      true,
		FeePlanID:   planID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, dbConn.Create(&partner).Error)
	return partner
}

func TestPlanFor_AssignedPlanWins(t *testing.T) {
	svc, dbConn, node := setupPartnerService(t)
	ctx := context.Background()

	_, err := svc.CreateFeePlan(ctx, partnerdomain.CreateFeePlanRequest{Name: "デフォルト", MonthlyFee: 3000, IsDefault: true})
	require.NoError(t, err)
	assigned, err := svc.CreateFeePlan(ctx, partnerdomain.CreateFeePlanRequest{Name: "プレミアム", MonthlyFee: 10000, PerOrderFee: 2000})
	require.NoError(t, err)

	partner := createPartner(t, dbConn, node, &assigned.ID)
	plan, err := svc.PlanFor(ctx, partner)
	require.NoError(t, err)
	assert.Equal(t, fees.Plan{MonthlyFee: 10000, PerOrderFee: 2000}, plan)
}

func TestPlanFor_FallsBackToDefault(t *testing.T) {
	svc, dbConn, node := setupPartnerService(t)
	ctx := context.Background()

	_, err := svc.CreateFeePlan(ctx, partnerdomain.CreateFeePlanRequest{Name: "デフォルト", MonthlyFee: 3000, IsDefault: true})
	require.NoError(t, err)

	partner := createPartner(t, dbConn, node, nil)
	plan, err := svc.PlanFor(ctx, partner)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), plan.MonthlyFee)
}

func TestPlanFor_NoDefaultPlan(t *testing.T) {
	svc, dbConn, node := setupPartnerService(t)

	partner := createPartner(t, dbConn, node, nil)
	_, err := svc.PlanFor(context.Background(), partner)
	assert.ErrorIs(t, err, partnerdomain.ErrNoDefaultPlan)
}

func TestCreateFeePlan_ReplacesDefaultFlag(t *testing.T) {
	svc, _, _ := setupPartnerService(t)
	ctx := context.Background()

	first, err := svc.CreateFeePlan(ctx, partnerdomain.CreateFeePlanRequest{Name: "旧デフォルト", IsDefault: true})
	require.NoError(t, err)
	second, err := svc.CreateFeePlan(ctx, partnerdomain.CreateFeePlanRequest{Name: "新デフォルト", IsDefault: true})
	require.NoError(t, err)

	plans, err := svc.ListFeePlans(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, plan := range plans {
		if plan.IsDefault {
			defaults++
			assert.Equal(t, second.ID, plan.ID)
		}
	}
	assert.Equal(t, 1, defaults)
	_ = first
}

func TestCreateFeePlan_RequiresName(t *testing.T) {
	svc, _, _ := setupPartnerService(t)

	_, err := svc.CreateFeePlan(context.Background(), partnerdomain.CreateFeePlanRequest{Name: "   "})
	assert.ErrorIs(t, err, partnerdomain.ErrInvalidName)
}

func TestAssignFeePlan_UnknownPlan(t *testing.T) {
	svc, dbConn, node := setupPartnerService(t)
	partner := createPartner(t, dbConn, node, nil)

	err := svc.AssignFeePlan(context.Background(), partner.ID, node.Generate())
	assert.ErrorIs(t, err, partnerdomain.ErrFeePlanNotFound)
}

func TestSetActive_UnknownPartner(t *testing.T) {
	svc, _, node := setupPartnerService(t)

	err := svc.SetActive(context.Background(), node.Generate(), false)
	assert.ErrorIs(t, err, partnerdomain.ErrNotFound)
}
