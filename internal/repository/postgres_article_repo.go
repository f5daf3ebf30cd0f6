package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/encyclo/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// コンパイル時のインターフェース実装チェック
var _ ArticleRepository = (*PostgresArticleRepo)(nil)

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// FindByKey は指定トピックキーの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByKey(ctx context.Context, topicKey string) (*model.Article, error) {
	article := &model.Article{}

	err := r.db.QueryRowContext(ctx,
		`SELECT topic_key, content, markdown, suggestions, generated_at
		 FROM articles WHERE topic_key = $1`,
		topicKey,
	).Scan(
		&article.TopicKey, &article.Content, &article.Markdown,
		pq.Array(&article.Suggestions), &article.GeneratedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	return article, nil
}

// Save は記事を保存する。同一トピックキーの記事が存在する場合は上書きする。
func (r *PostgresArticleRepo) Save(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (topic_key, content, markdown, suggestions, generated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (topic_key) DO UPDATE SET
		    content = EXCLUDED.content,
		    markdown = EXCLUDED.markdown,
		    suggestions = EXCLUDED.suggestions,
		    generated_at = EXCLUDED.generated_at`,
		article.TopicKey, article.Content, article.Markdown,
		pq.Array(article.Suggestions), article.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("記事の保存に失敗しました: %w", err)
	}
	return nil
}

// ListKeys は保存済みの全トピックキーをアルファベット順で返す。
func (r *PostgresArticleRepo) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT topic_key FROM articles ORDER BY topic_key`)
	if err != nil {
		return nil, fmt.Errorf("トピック一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("トピックキーの読み取りに失敗しました: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("トピック一覧の走査に失敗しました: %w", err)
	}

	return keys, nil
}
