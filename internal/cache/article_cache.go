// Package cache は生成済み記事のプロセス内キャッシュを提供する。
//
// 記事の生成はLLM呼び出しを伴い高価なため、リクエストごとの
// データベースアクセスとLLM呼び出しを減らす目的で短時間キャッシュする。
// キャッシュは正としない: 記事の更新・フィードバック反映時には必ず無効化する。
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hitoshi/encyclo/internal/model"
)

// ArticleCache はトピックキーをキーとする記事キャッシュ。
type ArticleCache struct {
	store *gocache.Cache
}

// NewArticleCache はArticleCacheを生成する。
// ttlはエントリの生存期間。期限切れエントリはttlの2倍間隔で回収される。
func NewArticleCache(ttl time.Duration) *ArticleCache {
	return &ArticleCache{
		store: gocache.New(ttl, 2*ttl),
	}
}

// Get はキャッシュから記事を取得する。ヒットしない場合は(nil, false)を返す。
func (c *ArticleCache) Get(topicKey string) (*model.Article, bool) {
	v, found := c.store.Get(topicKey)
	if !found {
		return nil, false
	}
	article, ok := v.(*model.Article)
	if !ok {
		return nil, false
	}
	return article, true
}

// Set は記事をキャッシュに保存する。既存エントリは上書きされる。
func (c *ArticleCache) Set(article *model.Article) {
	c.store.SetDefault(article.TopicKey, article)
}

// Invalidate は指定トピックのエントリを削除する。
// 記事の再生成・フィードバック反映後に呼び出し、古い内容の配信を防ぐ。
func (c *ArticleCache) Invalidate(topicKey string) {
	c.store.Delete(topicKey)
}
