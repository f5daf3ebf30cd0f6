package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/encyclo/internal/model"
	"github.com/hitoshi/encyclo/internal/review"
)

// PostgresSubmissionStore はPostgreSQLを使用した投稿履歴ストア。
// 複数ワーカー構成で不正利用フラグの判定を成立させるには、
// 全ワーカーが同じ履歴を参照する必要があるため、このストアを使用する。
type PostgresSubmissionStore struct {
	db *sql.DB
}

// コンパイル時のインターフェース実装チェック
var _ review.Store = (*PostgresSubmissionStore)(nil)

// NewPostgresSubmissionStore はPostgresSubmissionStoreを生成する。
func NewPostgresSubmissionStore(db *sql.DB) *PostgresSubmissionStore {
	return &PostgresSubmissionStore{db: db}
}

// Append は投稿を履歴に追記する。
func (s *PostgresSubmissionStore) Append(ctx context.Context, submission *model.Submission) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, created_at, ip_address, user_id, action, topic,
		                          content, sources, status, flags, reviewed_at, rejection_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		submission.ID, submission.CreatedAt, submission.IPAddress,
		nullString(submission.UserID), submission.Action, submission.Topic,
		submission.Content, pq.Array(submission.Sources),
		submission.Status, pq.Array(submission.Flags),
		submission.ReviewedAt, nullString(submission.RejectionReason),
	)
	if err != nil {
		return fmt.Errorf("投稿の保存に失敗しました: %w", err)
	}
	return nil
}

// RecentByIP は指定IPからの、since以降の投稿を古い順で返す。
func (s *PostgresSubmissionStore) RecentByIP(ctx context.Context, ipAddress string, since time.Time) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, ip_address, user_id, action, topic,
		        content, sources, status, flags, reviewed_at, rejection_reason
		 FROM submissions
		 WHERE ip_address = $1 AND created_at > $2
		 ORDER BY created_at ASC`,
		ipAddress, since,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// FindByID は投稿をIDで検索する。見つからない場合は(nil, nil)を返す。
func (s *PostgresSubmissionStore) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, ip_address, user_id, action, topic,
		        content, sources, status, flags, reviewed_at, rejection_reason
		 FROM submissions WHERE id = $1`,
		id,
	)

	submission, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return submission, nil
}

// MarkReviewed は投稿のステータスをpendingからstatusへ遷移させる。
// WHERE句でpendingを条件にすることで、終端状態からの遷移を
// データベースレベルで排除する。更新行数0の場合はfalseを返す。
func (s *PostgresSubmissionStore) MarkReviewed(ctx context.Context, id string, status model.SubmissionStatus, reason string, reviewedAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET status = $2, reviewed_at = $3, rejection_reason = $4
		 WHERE id = $1 AND status = 'pending'`,
		id, status, reviewedAt, nullString(reason),
	)
	if err != nil {
		return false, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新行数の取得に失敗しました: %w", err)
	}
	return affected == 1, nil
}

// ListPending はpendingステータスの投稿を新しい順で最大limit件返す。
func (s *PostgresSubmissionStore) ListPending(ctx context.Context, limit int) ([]model.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, ip_address, user_id, action, topic,
		        content, sources, status, flags, reviewed_at, rejection_reason
		 FROM submissions
		 WHERE status = 'pending'
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("レビュー待ち一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// Stats はステータスごとの投稿数を集計して返す。
func (s *PostgresSubmissionStore) Stats(ctx context.Context) (*model.SubmissionStats, error) {
	stats := &model.SubmissionStats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE status = 'pending'),
		        count(*) FILTER (WHERE status = 'approved'),
		        count(*) FILTER (WHERE status = 'rejected'),
		        count(*) FILTER (WHERE status = 'auto_approved'),
		        count(*) FILTER (WHERE cardinality(flags) > 0)
		 FROM submissions`,
	).Scan(
		&stats.Total, &stats.Pending, &stats.Approved,
		&stats.Rejected, &stats.AutoApproved, &stats.Flagged,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿の集計に失敗しました: %w", err)
	}

	return stats, nil
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSubmission は1行を投稿に変換する。
func scanSubmission(row rowScanner) (*model.Submission, error) {
	submission := &model.Submission{}
	var userID, rejectionReason sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&submission.ID, &submission.CreatedAt, &submission.IPAddress,
		&userID, &submission.Action, &submission.Topic,
		&submission.Content, pq.Array(&submission.Sources),
		&submission.Status, pq.Array(&submission.Flags),
		&reviewedAt, &rejectionReason,
	)
	if err != nil {
		return nil, err
	}

	submission.UserID = nullStringValue(userID)
	submission.RejectionReason = nullStringValue(rejectionReason)
	if reviewedAt.Valid {
		submission.ReviewedAt = &reviewedAt.Time
	}

	return submission, nil
}

// scanSubmissions は結果セット全体を投稿のスライスに変換する。
func scanSubmissions(rows *sql.Rows) ([]model.Submission, error) {
	var submissions []model.Submission
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿の読み取りに失敗しました: %w", err)
		}
		submissions = append(submissions, *submission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}
	return submissions, nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから値を取り出す。無効な場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
