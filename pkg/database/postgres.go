package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"travel-diary-backend/pkg/models"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// PostgresDatabase PostgreSQL数据库实现。行程的 wishlist/itinerary 以 JSONB
// 存在 trips 行内；协作者和分享链接是独立表，靠唯一 token 支持条件更新。
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase 创建PostgreSQL数据库实例
func NewPostgresDatabase(dsn string) DatabaseInterface {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		panic(fmt.Sprintf("Failed to open PostgreSQL connection: %v", err))
	}

	// 连接池参数，适合无服务器环境
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		panic(fmt.Sprintf("Failed to ping PostgreSQL: %v", err))
	}

	return &PostgresDatabase{db: db}
}

// NewPostgresDatabaseWithDB wraps an existing handle (used by tests).
func NewPostgresDatabaseWithDB(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// ==== 用户管理 ====

// CreateUser 创建用户
func (d *PostgresDatabase) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	query := `
		INSERT INTO users (id, email, password_hash, name, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := d.db.QueryRowContext(ctx, query, user.ID, user.Email, user.Password, user.Name, user.Avatar).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByEmail 根据邮箱查找用户，不存在时返回 (nil, nil)
func (d *PostgresDatabase) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(password_hash,''), COALESCE(name,''), COALESCE(avatar,''), created_at, updated_at
		FROM users
		WHERE email = $1
	`
	var u models.User
	err := d.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID 根据ID获取用户，不存在时返回 (nil, nil)
func (d *PostgresDatabase) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(password_hash,''), COALESCE(name,''), COALESCE(avatar,''), created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := d.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.Password, &u.Name, &u.Avatar, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

// UpdateUser 更新用户资料
func (d *PostgresDatabase) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET name = $2, avatar = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	if err := d.db.QueryRowContext(ctx, query, user.ID, user.Name, user.Avatar).Scan(&user.UpdatedAt); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ==== 行程管理 ====

const tripColumns = `id, user_id, title, COALESCE(description,''), destination, start_date, end_date,
	duration, status, is_public, total_budget, COALESCE(currency,'USD'), wishlist, itinerary, created_at, updated_at`

// CreateTrip 创建行程
func (d *PostgresDatabase) CreateTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}
	wishlist, itinerary, err := marshalTripLists(trip)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO trips (id, user_id, title, description, destination, start_date, end_date,
			duration, status, is_public, total_budget, currency, wishlist, itinerary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = d.db.QueryRowContext(ctx, query,
		trip.ID, trip.UserID, trip.Title, trip.Description, trip.Destination,
		trip.StartDate, trip.EndDate, trip.Duration, trip.Status, trip.IsPublic,
		trip.TotalBudget, trip.Currency, wishlist, itinerary,
	).Scan(&trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// GetTrip 获取行程，不存在时返回 (nil, nil)
func (d *PostgresDatabase) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`
	trip, err := scanTrip(d.db.QueryRowContext(ctx, query, tripID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// UpdateTrip 更新行程基础字段（itinerary/wishlist 走专用方法）
func (d *PostgresDatabase) UpdateTrip(ctx context.Context, trip *models.Trip) error {
	query := `
		UPDATE trips SET title = $2, description = $3, destination = $4, start_date = $5,
			end_date = $6, duration = $7, status = $8, is_public = $9,
			total_budget = $10, currency = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := d.db.QueryRowContext(ctx, query,
		trip.ID, trip.Title, trip.Description, trip.Destination, trip.StartDate,
		trip.EndDate, trip.Duration, trip.Status, trip.IsPublic,
		trip.TotalBudget, trip.Currency,
	).Scan(&trip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	return nil
}

// DeleteTrip 删除行程；协作者与分享链接由外键 ON DELETE CASCADE 级联删除
func (d *PostgresDatabase) DeleteTrip(ctx context.Context, tripID string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListUserTrips 列出用户拥有或已接受协作的行程
func (d *PostgresDatabase) ListUserTrips(ctx context.Context, userID string, limit, offset int) ([]models.Trip, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + tripColumns + `
		FROM trips t
		WHERE t.user_id = $1
		   OR EXISTS (
			SELECT 1 FROM trip_collaborators c
			WHERE c.trip_id = t.id AND c.user_id = $1 AND c.status = 'accepted'
		   )
		ORDER BY t.updated_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := d.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, *trip)
	}
	return trips, rows.Err()
}

// UpdateItinerary 整体替换行程的 itinerary
func (d *PostgresDatabase) UpdateItinerary(ctx context.Context, tripID string, items []models.ItineraryItem) error {
	if items == nil {
		items = []models.ItineraryItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal itinerary: %w", err)
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE trips SET itinerary = $2, updated_at = NOW() WHERE id = $1`, tripID, payload)
	if err != nil {
		return fmt.Errorf("failed to update itinerary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddToWishlist 追加一个地点到 wishlist（JSONB 数组拼接）
func (d *PostgresDatabase) AddToWishlist(ctx context.Context, tripID string, place models.Place) error {
	payload, err := json.Marshal(place)
	if err != nil {
		return fmt.Errorf("failed to marshal place: %w", err)
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE trips SET wishlist = wishlist || jsonb_build_array($2::jsonb), updated_at = NOW() WHERE id = $1`,
		tripID, payload)
	if err != nil {
		return fmt.Errorf("failed to add to wishlist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ==== 协作者 ====

const collaboratorColumns = `id, trip_id, COALESCE(user_id,''), email, COALESCE(name,''), role,
	invited_by, invited_at, status, invite_token, responded_at, accepted_at`

// AddCollaborator 新增待处理的协作者记录
func (d *PostgresDatabase) AddCollaborator(ctx context.Context, c *models.Collaborator) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	query := `
		INSERT INTO trip_collaborators (id, trip_id, user_id, email, name, role, invited_by, invited_at, status, invite_token)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := d.db.ExecContext(ctx, query,
		c.ID, c.TripID, c.UserID, c.Email, c.Name, c.Role, c.InvitedBy, c.InvitedAt, c.Status, c.InviteToken)
	if err != nil {
		return fmt.Errorf("failed to add collaborator: %w", err)
	}
	return nil
}

// ListCollaborators 列出行程的协作者
func (d *PostgresDatabase) ListCollaborators(ctx context.Context, tripID string) ([]models.Collaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM trip_collaborators WHERE trip_id = $1 ORDER BY invited_at`
	rows, err := d.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborators: %w", err)
	}
	defer rows.Close()

	var out []models.Collaborator
	for rows.Next() {
		c, err := scanCollaborator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collaborator: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCollaboratorByToken 按 invite token 查找，不存在时返回 (nil, nil)
func (d *PostgresDatabase) GetCollaboratorByToken(ctx context.Context, inviteToken string) (*models.Collaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM trip_collaborators WHERE invite_token = $1`
	c, err := scanCollaborator(d.db.QueryRowContext(ctx, query, inviteToken))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collaborator by token: %w", err)
	}
	return c, nil
}

// GetCollaboratorByID 按 (trip, id) 查找，不存在时返回 (nil, nil)
func (d *PostgresDatabase) GetCollaboratorByID(ctx context.Context, tripID, collaboratorID string) (*models.Collaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM trip_collaborators WHERE trip_id = $1 AND id = $2`
	c, err := scanCollaborator(d.db.QueryRowContext(ctx, query, tripID, collaboratorID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collaborator: %w", err)
	}
	return c, nil
}

// TransitionCollaboratorStatus 条件更新邀请状态（CAS）。
// 单条 UPDATE 带 status 条件，两个并发响应只有一个能命中。
func (d *PostgresDatabase) TransitionCollaboratorStatus(ctx context.Context, inviteToken string, from, to models.CollaboratorStatus, at time.Time) (bool, bool, error) {
	query := `
		UPDATE trip_collaborators
		SET status = $3,
		    responded_at = $4,
		    accepted_at = CASE WHEN $3 = 'accepted' THEN $4 ELSE accepted_at END
		WHERE invite_token = $1 AND status = $2
	`
	res, err := d.db.ExecContext(ctx, query, inviteToken, from, to, at)
	if err != nil {
		return false, false, fmt.Errorf("failed to transition collaborator status: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, true, nil
	}

	// 没有命中：区分 token 不存在和状态已终结
	var exists bool
	err = d.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM trip_collaborators WHERE invite_token = $1)`, inviteToken).Scan(&exists)
	if err != nil {
		return false, false, fmt.Errorf("failed to check invite token: %w", err)
	}
	return exists, false, nil
}

// UpdateCollaboratorRole 修改协作者角色
func (d *PostgresDatabase) UpdateCollaboratorRole(ctx context.Context, tripID, collaboratorID string, role models.Role) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE trip_collaborators SET role = $3 WHERE trip_id = $1 AND id = $2`,
		tripID, collaboratorID, role)
	if err != nil {
		return fmt.Errorf("failed to update collaborator role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteCollaborator 删除协作者记录
func (d *PostgresDatabase) DeleteCollaborator(ctx context.Context, tripID, collaboratorID string) error {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM trip_collaborators WHERE trip_id = $1 AND id = $2`, tripID, collaboratorID)
	if err != nil {
		return fmt.Errorf("failed to delete collaborator: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListInvitationsByEmail 列出某邮箱收到的待处理邀请
func (d *PostgresDatabase) ListInvitationsByEmail(ctx context.Context, email string) ([]models.Collaborator, error) {
	query := `SELECT ` + collaboratorColumns + ` FROM trip_collaborators WHERE email = $1 AND status = 'pending' ORDER BY invited_at DESC`
	rows, err := d.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var out []models.Collaborator
	for rows.Next() {
		c, err := scanCollaborator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ==== 分享链接 ====

const shareLinkColumns = `id, trip_id, token, created_by, is_public, allow_comments,
	password_protected, COALESCE(password_hash,''), access_count, expires_at, created_at, last_accessed_at, revoked_at`

// CreateShareLink 创建分享链接
func (d *PostgresDatabase) CreateShareLink(ctx context.Context, l *models.ShareLink) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	query := `
		INSERT INTO share_links (id, trip_id, token, created_by, is_public, allow_comments,
			password_protected, password_hash, access_count, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), 0, $9, $10)
	`
	_, err := d.db.ExecContext(ctx, query,
		l.ID, l.TripID, l.Token, l.CreatedBy,
		l.Settings.IsPublic, l.Settings.AllowComments, l.Settings.PasswordProtected, l.Settings.PasswordHash,
		l.ExpiresAt, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create share link: %w", err)
	}
	return nil
}

// GetShareLinkByToken 按 token 查找（包含已吊销的记录），不存在时返回 (nil, nil)
func (d *PostgresDatabase) GetShareLinkByToken(ctx context.Context, token string) (*models.ShareLink, error) {
	query := `SELECT ` + shareLinkColumns + ` FROM share_links WHERE token = $1`
	l, err := scanShareLink(d.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return l, nil
}

// ListShareLinks 列出行程的有效分享链接
func (d *PostgresDatabase) ListShareLinks(ctx context.Context, tripID string) ([]models.ShareLink, error) {
	query := `SELECT ` + shareLinkColumns + ` FROM share_links WHERE trip_id = $1 AND revoked_at IS NULL ORDER BY created_at DESC`
	rows, err := d.db.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	defer rows.Close()

	var out []models.ShareLink
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan share link: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// RevokeShareLink 吊销分享链接（保留记录，token 永不复用）
func (d *PostgresDatabase) RevokeShareLink(ctx context.Context, tripID, token string, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`UPDATE share_links SET revoked_at = $3 WHERE trip_id = $1 AND token = $2 AND revoked_at IS NULL`,
		tripID, token, at)
	if err != nil {
		return false, fmt.Errorf("failed to revoke share link: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecordShareAccess 累加访问计数（尽力而为）
func (d *PostgresDatabase) RecordShareAccess(ctx context.Context, token string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE share_links SET access_count = access_count + 1, last_accessed_at = $2 WHERE token = $1 AND revoked_at IS NULL`,
		token, at)
	if err != nil {
		return fmt.Errorf("failed to record share access: %w", err)
	}
	return nil
}

// ==== 健康检查 / 关闭 ====

// HealthCheck 数据库连通性检查
func (d *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close 关闭连接
func (d *PostgresDatabase) Close() error {
	return d.db.Close()
}

// ==== scan helpers ====

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var t models.Trip
	var wishlist, itinerary []byte
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Destination, &t.StartDate, &t.EndDate,
		&t.Duration, &t.Status, &t.IsPublic, &t.TotalBudget, &t.Currency,
		&wishlist, &itinerary, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(wishlist) > 0 {
		if err := json.Unmarshal(wishlist, &t.Wishlist); err != nil {
			return nil, fmt.Errorf("failed to unmarshal wishlist: %w", err)
		}
	}
	if len(itinerary) > 0 {
		if err := json.Unmarshal(itinerary, &t.Itinerary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal itinerary: %w", err)
		}
	}
	if t.Wishlist == nil {
		t.Wishlist = []models.Place{}
	}
	if t.Itinerary == nil {
		t.Itinerary = []models.ItineraryItem{}
	}
	return &t, nil
}

func scanCollaborator(row rowScanner) (*models.Collaborator, error) {
	var c models.Collaborator
	var respondedAt, acceptedAt sql.NullTime
	err := row.Scan(
		&c.ID, &c.TripID, &c.UserID, &c.Email, &c.Name, &c.Role,
		&c.InvitedBy, &c.InvitedAt, &c.Status, &c.InviteToken, &respondedAt, &acceptedAt,
	)
	if err != nil {
		return nil, err
	}
	if respondedAt.Valid {
		c.RespondedAt = &respondedAt.Time
	}
	if acceptedAt.Valid {
		c.AcceptedAt = &acceptedAt.Time
	}
	return &c, nil
}

func scanShareLink(row rowScanner) (*models.ShareLink, error) {
	var l models.ShareLink
	var expiresAt, lastAccessedAt, revokedAt sql.NullTime
	err := row.Scan(
		&l.ID, &l.TripID, &l.Token, &l.CreatedBy,
		&l.Settings.IsPublic, &l.Settings.AllowComments, &l.Settings.PasswordProtected, &l.Settings.PasswordHash,
		&l.AccessCount, &expiresAt, &l.CreatedAt, &lastAccessedAt, &revokedAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		l.ExpiresAt = &expiresAt.Time
	}
	if lastAccessedAt.Valid {
		l.LastAccessedAt = &lastAccessedAt.Time
	}
	if revokedAt.Valid {
		l.RevokedAt = &revokedAt.Time
	}
	return &l, nil
}

func marshalTripLists(trip *models.Trip) ([]byte, []byte, error) {
	if trip.Wishlist == nil {
		trip.Wishlist = []models.Place{}
	}
	if trip.Itinerary == nil {
		trip.Itinerary = []models.ItineraryItem{}
	}
	wishlist, err := json.Marshal(trip.Wishlist)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal wishlist: %w", err)
	}
	itinerary, err := json.Marshal(trip.Itinerary)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal itinerary: %w", err)
	}
	return wishlist, itinerary, nil
}
