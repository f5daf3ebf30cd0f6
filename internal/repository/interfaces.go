// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/encyclo/internal/model"
)

// ArticleRepository は記事データの永続化インターフェース。
// トピックキーは正規化済み（小文字・トリム済み）であることを前提とする。
type ArticleRepository interface {
	// FindByKey は指定トピックキーの記事を取得する。見つからない場合はnilを返す。
	FindByKey(ctx context.Context, topicKey string) (*model.Article, error)

	// Save は記事を保存する。同一トピックキーの記事が存在する場合は上書きする。
	// 同一内容での再実行は冪等。
	Save(ctx context.Context, article *model.Article) error

	// ListKeys は保存済みの全トピックキーをアルファベット順で返す。
	ListKeys(ctx context.Context) ([]string, error)
}
