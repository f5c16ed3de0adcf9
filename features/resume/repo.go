package resume

import (
	"context"
	"database/sql"
)

type Repository interface {
	ExistsByHash(ctx context.Context, collection, hash string) (bool, error)
	Save(ctx context.Context, u *Upload) error
	List(ctx context.Context) ([]Upload, error)
	DeleteByCollection(ctx context.Context, collection string) (int64, error)
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) ExistsByHash(ctx context.Context, collection, hash string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM resume_uploads WHERE collection = $1 AND content_hash = $2)`
	err := r.db.QueryRowContext(ctx, query, collection, hash).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresRepo) Save(ctx context.Context, u *Upload) error {
	query := `INSERT INTO resume_uploads (uid, collection, filename, path, content_hash, name, name_norm, candidate_id, chunks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query,
		u.UID, u.Collection, u.Filename, u.Path, u.ContentHash, u.Name, u.NameNorm, u.CandidateID, u.Chunks,
	).Scan(&u.ID, &u.CreatedAt)
}

func (r *PostgresRepo) List(ctx context.Context) ([]Upload, error) {
	query := `SELECT id, uid, collection, filename, path, content_hash, name, name_norm, candidate_id, chunks, created_at
		FROM resume_uploads ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.UID, &u.Collection, &u.Filename, &u.Path, &u.ContentHash,
			&u.Name, &u.NameNorm, &u.CandidateID, &u.Chunks, &u.CreatedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (r *PostgresRepo) DeleteByCollection(ctx context.Context, collection string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM resume_uploads WHERE collection = $1`, collection)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resume_uploads`).Scan(&count)
	return count, err
}
