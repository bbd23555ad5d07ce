package database

import (
	"context"
	"os"
	"time"

	"travel-diary-backend/pkg/models"
)

// DatabaseInterface 定义数据库访问接口。
// 所有 Find/Get 查询在记录不存在时返回 (nil, nil)，由调用方决定映射到哪种
// 错误；只有真正的存储故障才返回 error。
type DatabaseInterface interface {
	// 用户管理
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// 行程管理
	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	UpdateTrip(ctx context.Context, trip *models.Trip) error
	// DeleteTrip removes the trip. Collaborators and share links are owned
	// by the trip and must go with it (cascade), never the reverse.
	DeleteTrip(ctx context.Context, tripID string) error
	ListUserTrips(ctx context.Context, userID string, limit, offset int) ([]models.Trip, error)
	UpdateItinerary(ctx context.Context, tripID string, items []models.ItineraryItem) error
	AddToWishlist(ctx context.Context, tripID string, place models.Place) error

	// 协作者（trip 的子集合，按 invite token 做条件更新）
	AddCollaborator(ctx context.Context, c *models.Collaborator) error
	ListCollaborators(ctx context.Context, tripID string) ([]models.Collaborator, error)
	GetCollaboratorByToken(ctx context.Context, inviteToken string) (*models.Collaborator, error)
	GetCollaboratorByID(ctx context.Context, tripID, collaboratorID string) (*models.Collaborator, error)
	// TransitionCollaboratorStatus 以 invite token 为键做一次 compare-and-swap：
	// 只有当前状态等于 from 时才切换到 to。found 表示记录存在，swapped 表示
	// 本次调用完成了切换；并发响应同一邀请时只有一个调用者能拿到 swapped=true。
	TransitionCollaboratorStatus(ctx context.Context, inviteToken string, from, to models.CollaboratorStatus, at time.Time) (found, swapped bool, err error)
	UpdateCollaboratorRole(ctx context.Context, tripID, collaboratorID string, role models.Role) error
	DeleteCollaborator(ctx context.Context, tripID, collaboratorID string) error
	ListInvitationsByEmail(ctx context.Context, email string) ([]models.Collaborator, error)

	// 分享链接（独立表，弱引用 trip）
	CreateShareLink(ctx context.Context, l *models.ShareLink) error
	GetShareLinkByToken(ctx context.Context, token string) (*models.ShareLink, error)
	ListShareLinks(ctx context.Context, tripID string) ([]models.ShareLink, error)
	// RevokeShareLink flags the link invalid without deleting the row, so
	// the token string is never recycled. Returns false when no live link
	// matched.
	RevokeShareLink(ctx context.Context, tripID, token string, at time.Time) (bool, error)
	// RecordShareAccess 尽力而为地累加访问计数；丢失计数不算错误。
	RecordShareAccess(ctx context.Context, token string, at time.Time) error

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB  bool
	PostgresDSN string
	Debug       bool
}

// NewDatabase 根据配置选择数据库实现
func NewDatabase(config DatabaseConfig) DatabaseInterface {
	if config.PostgresDSN != "" {
		return NewPostgresDatabase(config.PostgresDSN)
	}
	if config.UseLocalDB && !isServerlessEnvironment() {
		// 本地开发/测试使用内存数据库
		return NewMemoryDatabase()
	}
	panic("No valid database configuration found. Please configure POSTGRES_DSN or set USE_LOCAL_DB=true")
}

// isServerlessEnvironment 检查是否运行在 Serverless 平台（Vercel/Lambda）
func isServerlessEnvironment() bool {
	vercelEnv := os.Getenv("VERCEL_ENV")
	vercelURL := os.Getenv("VERCEL_URL")
	awsLambda := os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
	return vercelEnv != "" || vercelURL != "" || awsLambda != ""
}
