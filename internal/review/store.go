package review

import (
	"context"
	"time"

	"github.com/hitoshi/encyclo/internal/model"
)

// Store は投稿履歴の保存先のインターフェースを定義する。
// 単一プロセスではメモリ実装で十分だが、水平スケール時は
// 全ワーカーが同じ履歴を参照できるようPostgreSQL実装を使用する。
// そうしないと不正利用フラグの頻度判定が自ワーカーに届いた投稿しか見えなくなる。
type Store interface {
	// Append は投稿を履歴に追記する。
	Append(ctx context.Context, submission *model.Submission) error

	// RecentByIP は指定IPからの、since以降の投稿を古い順で返す。
	// 該当がない場合は空スライスを返す。
	RecentByIP(ctx context.Context, ipAddress string, since time.Time) ([]model.Submission, error)

	// FindByID は投稿をIDで検索する。
	// 見つからない場合は(nil, nil)を返す。
	FindByID(ctx context.Context, id string) (*model.Submission, error)

	// MarkReviewed は投稿のステータスをpendingからstatusへ遷移させ、
	// レビュー時刻と却下理由を記録する。
	// 投稿が存在しない、またはpending以外の場合はfalseを返し、何も変更しない。
	MarkReviewed(ctx context.Context, id string, status model.SubmissionStatus, reason string, reviewedAt time.Time) (bool, error)

	// ListPending はpendingステータスの投稿を新しい順で最大limit件返す。
	ListPending(ctx context.Context, limit int) ([]model.Submission, error)

	// Stats はステータスごとの投稿数を集計して返す。
	Stats(ctx context.Context) (*model.SubmissionStats, error)
}
