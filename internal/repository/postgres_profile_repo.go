package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/memberport/internal/model"
	"github.com/lib/pq"
)

// profilesEmailConstraint はログインemailのユニークインデックス名。
// このインデックスへの違反は「同一emailで異なる外部ID」の重複条件を意味する。
const profilesEmailConstraint = "profiles_email_key"

// uniqueViolation はPostgreSQLのunique_violationエラーコード。
const uniqueViolation = "23505"

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

const profileColumns = `id, auth_user_id, email, name, username, alternate_email,
	 discord_nickname, ggpoker_username, created_at, updated_at`

// scanProfile は1行をmodel.Profileに読み取る。
func scanProfile(row interface{ Scan(...any) error }) (*model.Profile, error) {
	p := &model.Profile{}
	err := row.Scan(
		&p.ID, &p.AuthUserID, &p.Email, &p.Name, &p.Username, &p.AlternateEmail,
		&p.DiscordNickname, &p.GGPokerUsername, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpsertByAuthUserID はauth_user_idをキーにプロフィールを1文でUPSERTする。
// read-then-writeではなくON CONFLICTによるアトミックUPSERTを使うため、
// 同一外部IDの同時コールバックが競合しても行は1つしか作られない。
// nilのメタデータフィールドはCOALESCEにより既存値を維持する（冪等なマージ）。
func (r *PostgresProfileRepo) UpsertByAuthUserID(ctx context.Context, input *ProfileUpsert) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, auth_user_id, email, name, username, alternate_email,
		                       discord_nickname, ggpoker_username, created_at, updated_at)
		 VALUES ($1, $2, $3, COALESCE($4, ''), COALESCE($5, ''), COALESCE($6, ''),
		         COALESCE($7, ''), COALESCE($8, ''), now(), now())
		 ON CONFLICT (auth_user_id) DO UPDATE SET
		     email            = EXCLUDED.email,
		     name             = COALESCE($4, profiles.name),
		     username         = COALESCE($5, profiles.username),
		     alternate_email  = COALESCE($6, profiles.alternate_email),
		     discord_nickname = COALESCE($7, profiles.discord_nickname),
		     ggpoker_username = COALESCE($8, profiles.ggpoker_username),
		     updated_at       = now()
		 RETURNING `+profileColumns,
		uuid.New().String(), input.AuthUserID, input.Email,
		input.Name, input.Username, input.AlternateEmail,
		input.DiscordNickname, input.GGPokerUsername,
	)

	profile, err := scanProfile(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == profilesEmailConstraint {
			// 同一emailで異なるauth_user_id: 推測でのマージはせず重複条件として表面化する
			return nil, fmt.Errorf("duplicate email for different identity: %w", model.NewProfileConflictError(input.Email))
		}
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return profile, nil
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	return profile, nil
}

// SearchByEmail はemailの部分一致（大文字小文字無視）で検索する。
// created_at降順、limit/offsetでページング。
func (r *PostgresProfileRepo) SearchByEmail(ctx context.Context, emailFragment string, limit, offset int) ([]*model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+`
		 FROM profiles
		 WHERE email ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		emailFragment, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}

// UpdateSelf はユーザー自身によるプロフィール編集を適用する。
// nilのフィールドはCOALESCEにより変更しない。
func (r *PostgresProfileRepo) UpdateSelf(ctx context.Context, id string, input *ProfileSelfUpdate) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE profiles SET
		     name             = COALESCE($2, name),
		     username         = COALESCE($3, username),
		     alternate_email  = COALESCE($4, alternate_email),
		     discord_nickname = COALESCE($5, discord_nickname),
		     ggpoker_username = COALESCE($6, ggpoker_username),
		     updated_at       = now()
		 WHERE id = $1
		 RETURNING `+profileColumns,
		id, input.Name, input.Username, input.AlternateEmail,
		input.DiscordNickname, input.GGPokerUsername,
	)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, model.NewProfileNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return profile, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
