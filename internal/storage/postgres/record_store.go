package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JakeFAU/filament-catalog/internal/catalog"
)

const materialColumns = `id, source_key, name, manufacturer, color_name, material_type,
	color_hex, transmittance_hex, bed_temp, hotend_temp, transparent, glitter, glow,
	notes, image_url`

// RecordStore persists MaterialRecords and their tags in Postgres.
type RecordStore struct {
	pool Pool
	now  func() time.Time
}

// NewRecordStore wraps an existing pool.
func NewRecordStore(pool Pool) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecordStore{pool: pool, now: time.Now}, nil
}

// Get loads a record and its tags.
func (s *RecordStore) Get(ctx context.Context, key string) (catalog.MaterialRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM materials WHERE source_key = $1`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.MaterialRecord{}, catalog.ErrNotFound
		}
		return catalog.MaterialRecord{}, fmt.Errorf("get material: %w", err)
	}
	tags, err := s.tags(ctx, rec.ID)
	if err != nil {
		return catalog.MaterialRecord{}, err
	}
	rec.Tags = tags
	return rec, nil
}

// IsComplete reports whether key exists with a name, manufacturer and color.
func (s *RecordStore) IsComplete(ctx context.Context, key string) (bool, error) {
	var complete bool
	err := s.pool.QueryRow(ctx, `
		SELECT name <> '' AND manufacturer <> '' AND color_hex IS NOT NULL
		FROM materials
		WHERE source_key = $1`, key).Scan(&complete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check completeness: %w", err)
	}
	return complete, nil
}

// Upsert merges partial into the stored record for key and replaces its tags,
// all in one transaction.
func (s *RecordStore) Upsert(
	ctx context.Context,
	key string,
	partial catalog.MaterialRecord,
	fullRefresh bool,
) (int64, error) {
	if key == "" {
		return 0, fmt.Errorf("record key is required")
	}
	var id int64
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		stored, err := scanRecord(tx.QueryRow(ctx,
			`SELECT `+materialColumns+` FROM materials WHERE source_key = $1 FOR UPDATE`, key))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			next := partial.Clone()
			next.Key = key
			id, err = insertRecord(ctx, tx, next, s.now())
			if err != nil {
				return err
			}
		case err != nil:
			return fmt.Errorf("lock material: %w", err)
		default:
			next := catalog.Merge(stored, partial, fullRefresh)
			id = stored.ID
			if err := updateRecord(ctx, tx, next, s.now()); err != nil {
				return err
			}
		}
		return replaceTags(ctx, tx, id, catalog.NormalizeTags(partial.Tags))
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// List returns records matching filter ordered by id.
func (s *RecordStore) List(ctx context.Context, filter catalog.Filter) ([]catalog.MaterialRecord, error) {
	query, args := listQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()

	out := make([]catalog.MaterialRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	for i := range out {
		tags, err := s.tags(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tags = tags
	}
	return out, nil
}

// Manufacturers returns the distinct non-empty manufacturers.
func (s *RecordStore) Manufacturers(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "manufacturer")
}

// MaterialTypes returns the distinct non-empty material types.
func (s *RecordStore) MaterialTypes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "material_type")
}

func (s *RecordStore) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(
		`SELECT DISTINCT %[1]s FROM materials WHERE %[1]s <> '' ORDER BY %[1]s`, column)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", column, err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *RecordStore) tags(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tag FROM material_tags WHERE material_id = $1 ORDER BY tag`, id)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func insertRecord(ctx context.Context, tx pgx.Tx, rec catalog.MaterialRecord, at time.Time) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO materials (
			source_key, name, manufacturer, color_name, material_type,
			color_hex, transmittance_hex, bed_temp, hotend_temp,
			transparent, glitter, glow, notes, image_url, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		rec.Key,
		rec.Name,
		rec.Manufacturer,
		rec.ColorName,
		rec.MaterialType,
		hexText(rec.Color),
		hexText(rec.Transmittance),
		rec.BedTemp,
		rec.HotendTemp,
		rec.Transparent,
		rec.Glitter,
		rec.Glow,
		rec.Notes,
		rec.ImageURL,
		at,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert material: %w", err)
	}
	return id, nil
}

func updateRecord(ctx context.Context, tx pgx.Tx, rec catalog.MaterialRecord, at time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE materials SET
			name = $2, manufacturer = $3, color_name = $4, material_type = $5,
			color_hex = $6, transmittance_hex = $7, bed_temp = $8, hotend_temp = $9,
			transparent = $10, glitter = $11, glow = $12, notes = $13, image_url = $14,
			updated_at = $15
		WHERE id = $1`,
		rec.ID,
		rec.Name,
		rec.Manufacturer,
		rec.ColorName,
		rec.MaterialType,
		hexText(rec.Color),
		hexText(rec.Transmittance),
		rec.BedTemp,
		rec.HotendTemp,
		rec.Transparent,
		rec.Glitter,
		rec.Glow,
		rec.Notes,
		rec.ImageURL,
		at,
	)
	if err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	return nil
}

func replaceTags(ctx context.Context, tx pgx.Tx, id int64, tags []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM material_tags WHERE material_id = $1`, id); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	if len(tags) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO material_tags (material_id, tag) SELECT $1, unnest($2::text[])`, id, tags)
	if err != nil {
		return fmt.Errorf("insert tags: %w", err)
	}
	return nil
}

func listQuery(filter catalog.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add(`(name ILIKE $%[1]d OR manufacturer ILIKE $%[1]d OR color_hex ILIKE $%[1]d)`, "%"+q+"%")
	}
	if filter.MaterialType != "" {
		add(`material_type ILIKE $%d`, "%"+filter.MaterialType+"%")
	}
	if filter.Manufacturer != "" {
		add(`manufacturer ILIKE $%d`, "%"+filter.Manufacturer+"%")
	}
	if filter.HasTransmittance != nil {
		add(`(transmittance_hex IS NOT NULL) = $%d`, *filter.HasTransmittance)
	}

	var b strings.Builder
	b.WriteString(`SELECT ` + materialColumns + ` FROM materials`)
	if len(where) > 0 {
		b.WriteString(` WHERE ` + strings.Join(where, ` AND `))
	}
	b.WriteString(` ORDER BY id`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, ` OFFSET $%d`, len(args))
	}
	return b.String(), args
}

func scanRecord(row pgx.Row) (catalog.MaterialRecord, error) {
	var (
		rec                catalog.MaterialRecord
		color, transmitted pgtype.Text
	)
	err := row.Scan(
		&rec.ID,
		&rec.Key,
		&rec.Name,
		&rec.Manufacturer,
		&rec.ColorName,
		&rec.MaterialType,
		&color,
		&transmitted,
		&rec.BedTemp,
		&rec.HotendTemp,
		&rec.Transparent,
		&rec.Glitter,
		&rec.Glow,
		&rec.Notes,
		&rec.ImageURL,
	)
	if err != nil {
		return catalog.MaterialRecord{}, err
	}
	if rec.Color, err = rgbFromText(color); err != nil {
		return catalog.MaterialRecord{}, err
	}
	if rec.Transmittance, err = rgbFromText(transmitted); err != nil {
		return catalog.MaterialRecord{}, err
	}
	return rec, nil
}

func hexText(c *catalog.RGB) pgtype.Text {
	if c == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: c.Hex(), Valid: true}
}

func rgbFromText(t pgtype.Text) (*catalog.RGB, error) {
	if !t.Valid || t.String == "" {
		return nil, nil
	}
	c, err := catalog.ParseHex(t.String)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
