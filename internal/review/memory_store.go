package review

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/encyclo/internal/model"
)

// timeNow はテストから現在時刻を差し替えるためのフック。
var timeNow = time.Now

// defaultRetention はメモリストアが終端状態の投稿を保持する期間。
// pendingの投稿はレビューされるまで破棄しない。
const defaultRetention = 24 * time.Hour

// memoryStore はStoreのプロセス内メモリ実装。
// 単一プロセス構成と、テストでの利用を想定する。
// 複数ワーカー構成では各ワーカーが自分に届いた投稿しか見えないため、
// 不正利用フラグの判定精度が落ちる。その場合はPostgreSQL実装を使用すること。
type memoryStore struct {
	mu          sync.RWMutex
	submissions []model.Submission
	retention   time.Duration
}

// コンパイル時のインターフェース実装チェック
var _ Store = (*memoryStore)(nil)

// NewMemoryStore はメモリ上のStoreの新しいインスタンスを生成する。
func NewMemoryStore() *memoryStore {
	return &memoryStore{
		retention: defaultRetention,
	}
}

// Append は投稿を履歴に追記する。
// 追記のたびに保持期間を過ぎた終端状態の投稿を破棄し、メモリ使用量を抑える。
func (s *memoryStore) Append(_ context.Context, submission *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(timeNow())
	s.submissions = append(s.submissions, *submission)
	return nil
}

// prune は保持期間を過ぎた投稿を履歴から取り除く。
// pendingの投稿はレビュー待ちのため保持期間に関わらず残す。
// 呼び出し側がロックを保持していること。
func (s *memoryStore) prune(now time.Time) {
	cutoff := now.Add(-s.retention)
	kept := s.submissions[:0]
	for _, sub := range s.submissions {
		if sub.Status == model.StatusPending || sub.CreatedAt.After(cutoff) {
			kept = append(kept, sub)
		}
	}
	s.submissions = kept
}

// RecentByIP は指定IPからの、since以降の投稿を古い順で返す。
func (s *memoryStore) RecentByIP(_ context.Context, ipAddress string, since time.Time) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Submission
	for _, sub := range s.submissions {
		if sub.IPAddress == ipAddress && sub.CreatedAt.After(since) {
			result = append(result, sub)
		}
	}
	return result, nil
}

// FindByID は投稿をIDで検索する。見つからない場合は(nil, nil)を返す。
func (s *memoryStore) FindByID(_ context.Context, id string) (*model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.submissions {
		if s.submissions[i].ID == id {
			found := s.submissions[i]
			return &found, nil
		}
	}
	return nil, nil
}

// MarkReviewed は投稿のステータスをpendingからstatusへ遷移させる。
// 投稿が存在しない、またはpending以外の場合はfalseを返す。
func (s *memoryStore) MarkReviewed(_ context.Context, id string, status model.SubmissionStatus, reason string, reviewedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.submissions {
		if s.submissions[i].ID != id {
			continue
		}
		if s.submissions[i].Status != model.StatusPending {
			return false, nil
		}
		s.submissions[i].Status = status
		s.submissions[i].ReviewedAt = &reviewedAt
		s.submissions[i].RejectionReason = reason
		return true, nil
	}
	return false, nil
}

// ListPending はpendingステータスの投稿を新しい順で最大limit件返す。
func (s *memoryStore) ListPending(_ context.Context, limit int) ([]model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Submission
	// 履歴は追記順（古い順）のため、末尾から走査して新しい順に集める
	for i := len(s.submissions) - 1; i >= 0 && len(result) < limit; i-- {
		if s.submissions[i].Status == model.StatusPending {
			result = append(result, s.submissions[i])
		}
	}
	return result, nil
}

// Stats はステータスごとの投稿数を集計して返す。
func (s *memoryStore) Stats(_ context.Context) (*model.SubmissionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.SubmissionStats{}
	for _, sub := range s.submissions {
		stats.Total++
		switch sub.Status {
		case model.StatusPending:
			stats.Pending++
		case model.StatusApproved:
			stats.Approved++
		case model.StatusRejected:
			stats.Rejected++
		case model.StatusAutoApproved:
			stats.AutoApproved++
		}
		if len(sub.Flags) > 0 {
			stats.Flagged++
		}
	}
	return stats, nil
}
