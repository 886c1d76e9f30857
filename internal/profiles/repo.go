package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mvasic/vitalog/internal/telemetry/tracing"
	"github.com/mvasic/vitalog/pkg"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailTaken      = errors.New("profile email already taken")
)

// UpdateParams carries a partial profile update, nil fields are left untouched.
type UpdateParams struct {
	ID            int
	Name          *string
	Age           *int
	WeightKg      *float64
	HeightCm      *float64
	HealthGoal    *HealthGoal
	ActivityLevel *ActivityLevel
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Create(ctx context.Context, profile Profile) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profiles.create")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	// onboarding-created profiles have no password yet
	var passwordHash *string
	if profile.PasswordHash != "" {
		passwordHash = &profile.PasswordHash
	}

	now := time.Now()
	rows, err := r.db.Query(
		ctx,
		`INSERT INTO profile
				(name, email, password_hash, age, weight_kg, height_cm, health_goal, activity_level, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
			RETURNING id;`,
		profile.Name, profile.Email, passwordHash,
		profile.Age, profile.WeightKg, profile.HeightCm,
		profile.HealthGoal, profile.ActivityLevel, now,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !rows.Next() {
		return nil, errors.New("unexpected error [no rows next]")
	}

	var id int
	if err := rows.Scan(&id); err != nil {
		return nil, fmt.Errorf("rows scan: %w", err)
	}

	span.SetAttributes(attribute.Int("profile.id", id))

	profile.ID = id
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return &profile, nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profiles.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT
				id, name, email, password_hash, age, weight_kg, height_cm,
				health_goal, activity_level, created_at, updated_at
			FROM profile WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	profiles, err := r.rows2profiles(rows)
	if err != nil {
		return nil, err
	}

	if len(profiles) != 1 {
		return nil, ErrProfileNotFound
	}

	return &profiles[0], nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (_ *Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profiles.getByEmail")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT
				id, name, email, password_hash, age, weight_kg, height_cm,
				health_goal, activity_level, created_at, updated_at
			FROM profile WHERE email = $1;`,
		email,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	profiles, err := r.rows2profiles(rows)
	if err != nil {
		return nil, err
	}

	if len(profiles) != 1 {
		return nil, ErrProfileNotFound
	}

	return &profiles[0], nil
}

// Update applies a partial update, untouched fields keep their values.
func (r *Repo) Update(ctx context.Context, params UpdateParams) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profiles.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", params.ID))

	tag, err := r.db.Exec(
		ctx,
		`UPDATE profile SET
				name = COALESCE($1, name),
				age = COALESCE($2, age),
				weight_kg = COALESCE($3, weight_kg),
				height_cm = COALESCE($4, height_cm),
				health_goal = COALESCE($5, health_goal),
				activity_level = COALESCE($6, activity_level),
				updated_at = $7
			WHERE id = $8;`,
		params.Name, params.Age, params.WeightKg, params.HeightCm,
		params.HealthGoal, params.ActivityLevel, time.Now(), params.ID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profiles.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM profile WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *Repo) List(ctx context.Context) (_ []Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profiles.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(
		ctx,
		`SELECT
				id, name, email, password_hash, age, weight_kg, height_cm,
				health_goal, activity_level, created_at, updated_at
			FROM profile ORDER BY created_at DESC;`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return r.rows2profiles(rows)
}

func (r *Repo) rows2profiles(rows pgx.Rows) ([]Profile, error) {
	var profiles []Profile
	for rows.Next() {
		var p Profile
		var passwordHash *string
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Email, &passwordHash,
			&p.Age, &p.WeightKg, &p.HeightCm,
			&p.HealthGoal, &p.ActivityLevel,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if passwordHash != nil {
			p.PasswordHash = *passwordHash
		}

		profiles = append(profiles, p)
	}

	if profiles == nil {
		profiles = make([]Profile, 0)
	}

	return profiles, nil
}
