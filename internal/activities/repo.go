package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mvasic/vitalog/internal/telemetry/tracing"
)

var ErrActivityNotFound = errors.New("activity not found")

// ActivityParams filters activity queries. Zero values mean "no filter".
// From and To match on the activity date, CreatedFrom on the row
// creation time, i.e. it catches backdated entries too.
type ActivityParams struct {
	ProfileID   int
	Tag         string
	From        *time.Time
	To          *time.Time
	CreatedFrom *time.Time
}

type ListParams struct {
	ActivityParams
	Page int
	Size int
}

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, activity Activity) (_ *Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activities.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tagsJson, err := json.Marshal(activity.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	var completedAt *time.Time
	if !activity.CompletedAt.IsZero() {
		completedAt = &activity.CompletedAt
	}

	rows, err := r.db.Query(
		ctx,
		`INSERT INTO activity
				(profile_id, title, description, tags, duration_minutes, date, completed_at, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id;`,
		activity.ProfileID, activity.Title, activity.Description, tagsJson,
		activity.DurationMinutes, activity.Date, completedAt, activity.CreatedAt,
	)
	if err != nil {
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

	span.SetAttributes(attribute.Int("activity.id", id))

	activity.ID = id
	return &activity, nil
}

func (r *Repo) Update(ctx context.Context, activity *Activity) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activities.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", activity.ID))

	tagsJson, err := json.Marshal(activity.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	var completedAt *time.Time
	if !activity.CompletedAt.IsZero() {
		completedAt = &activity.CompletedAt
	}

	tag, err := r.db.Exec(
		ctx,
		`UPDATE activity SET
				title = $1, description = $2, tags = $3, duration_minutes = $4,
				date = $5, completed_at = $6
			WHERE id = $7 AND profile_id = $8;`,
		activity.Title, activity.Description, tagsJson, activity.DurationMinutes,
		activity.Date, completedAt, activity.ID, activity.ProfileID,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return ErrActivityNotFound
	}

	return nil
}

func (r *Repo) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activities.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM activity WHERE id = $1;`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrActivityNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id int) (_ *Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activities.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("id", id))

	rows, err := r.db.Query(
		ctx,
		`SELECT
				id, profile_id, title, description, tags, duration_minutes, date, completed_at, created_at
			FROM activity WHERE id = $1;`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, err
	}

	activities, err := r.rows2activities(rows)
	if err != nil {
		return nil, err
	}

	if len(activities) != 1 {
		return nil, ErrActivityNotFound
	}

	return &activities[0], nil
}

// ListAll returns all activities matching the given params, newest first.
func (r *Repo) ListAll(ctx context.Context, params ActivityParams) (_ []Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activities.listall")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("profile_id", params.ProfileID))
	span.SetAttributes(attribute.String("tag", params.Tag))
	if params.From != nil {
		span.SetAttributes(attribute.String("from", params.From.String()))
	}
	if params.To != nil {
		span.SetAttributes(attribute.String("to", params.To.String()))
	}
	if params.CreatedFrom != nil {
		span.SetAttributes(attribute.String("created_from", params.CreatedFrom.String()))
	}

	rows, err := r.db.Query(
		ctx,
		`SELECT
				id, profile_id, title, description, tags, duration_minutes, date, completed_at, created_at
			FROM activity
				WHERE ($1::int = 0 OR profile_id = $1)
				AND ($2::text = '' OR tags ? $2)
				AND ($3::timestamp IS NULL OR date >= $3)
				AND ($4::timestamp IS NULL OR date <= $4)
				AND ($5::timestamp IS NULL OR created_at >= $5)
			ORDER BY date DESC, created_at DESC;`,
		params.ProfileID, params.Tag,
		params.From, params.To, params.CreatedFrom,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	activities, err := r.rows2activities(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2activities: %w", err)
	}
	return activities, nil
}

// List is like ListAll, but returns the specified page, i.e. is used for pagination.
func (r *Repo) List(ctx context.Context, params ListParams) (_ []Activity, total int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activities.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.Int("page", params.Page))
	span.SetAttributes(attribute.Int("size", params.Size))
	span.SetAttributes(attribute.Int("profile_id", params.ProfileID))
	span.SetAttributes(attribute.String("tag", params.Tag))

	if params.Page < 1 {
		return nil, -1, errors.New("page must be greater than 0")
	}
	if params.Size < 1 {
		return nil, -1, errors.New("size must be greater than 0")
	}

	limit := params.Size
	offset := (params.Page - 1) * params.Size
	countAll, err := r.Count(ctx, params.ActivityParams)
	if err != nil {
		return nil, -1, err
	}

	if countAll <= limit {
		limit = countAll
		offset = 0
	}

	if countAll-offset < limit {
		offset = countAll - limit
	}

	span.SetAttributes(attribute.Int("count_all", countAll))
	span.SetAttributes(attribute.Int("limit", limit))
	span.SetAttributes(attribute.Int("offset", offset))

	rows, err := r.db.Query(
		ctx,
		`SELECT
				id, profile_id, title, description, tags, duration_minutes, date, completed_at, created_at
			FROM activity
				WHERE ($1::int = 0 OR profile_id = $1)
				AND ($2::text = '' OR tags ? $2)
			ORDER BY date DESC, created_at DESC
			LIMIT $3
			OFFSET $4;`,
		params.ProfileID, params.Tag,
		limit, offset,
	)
	if err != nil {
		return nil, -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return nil, -1, err
	}

	activities, err := r.rows2activities(rows)
	if err != nil {
		return nil, -1, err
	}
	return activities, countAll, nil
}

func (r *Repo) Count(ctx context.Context, params ActivityParams) (_ int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activities.count")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	rows, err := r.db.Query(ctx, `
		SELECT COUNT(*) FROM activity
			WHERE ($1::int = 0 OR profile_id = $1)
			AND ($2::text = '' OR tags ? $2)
			AND ($3::timestamp IS NULL OR date >= $3)
			AND ($4::timestamp IS NULL OR date <= $4)
			AND ($5::timestamp IS NULL OR created_at >= $5);
	`,
		params.ProfileID, params.Tag,
		params.From, params.To, params.CreatedFrom,
	)
	if err != nil {
		return -1, err
	}
	defer rows.Close()

	if err := rows.Err(); err != nil {
		return -1, err
	}

	if rows.Next() {
		var count int
		if err := rows.Scan(&count); err == nil {
			return count, nil
		}
	}

	return -1, errors.New("unexpected error, failed to get activities count")
}

func (r *Repo) rows2activities(rows pgx.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		var a Activity
		var description *string
		var tagsBytes []byte
		var completedAt *time.Time
		if err := rows.Scan(
			&a.ID, &a.ProfileID, &a.Title, &description, &tagsBytes,
			&a.DurationMinutes, &a.Date, &completedAt, &a.CreatedAt,
		); err != nil {
			return nil, err
		}

		if description != nil {
			a.Description = *description
		}
		if completedAt != nil {
			a.CompletedAt = *completedAt
		}

		if len(tagsBytes) > 0 {
			if err := json.Unmarshal(tagsBytes, &a.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal tags for activity %d: %w", a.ID, err)
			}
		}
		if a.Tags == nil {
			a.Tags = make([]string, 0)
		}

		activities = append(activities, a)
	}

	if activities == nil {
		activities = make([]Activity, 0)
	}

	return activities, nil
}
