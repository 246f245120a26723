// Package following はフォロー一覧取得のプロキシを提供する。
// 保存済みのアクセストークンで外部APIを呼び出し、成功した結果をスナップショットとして保存する。
// 失敗しても呼び出し元にはエラーを返さず、スナップショットか空リストで応答する。
package following

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
	"github.com/hitoshi/bookshelf/internal/socialgraph"
)

// Source はフォロー一覧の応答元を表す。
type Source string

const (
	SourceLive     Source = "live"
	SourceSnapshot Source = "snapshot"
	SourceEmpty    Source = "empty"
)

const (
	defaultPageSize     = 100
	defaultFetchTimeout = 10 * time.Second
	defaultStoreTimeout = 5 * time.Second
)

// Result はフォロー一覧の取得結果。Profilesは常に非nil。
type Result struct {
	Profiles []model.ProfileSummary
	Source   Source
}

// FollowingFetcher は外部APIからフォロー一覧を取得するインターフェース。
type FollowingFetcher interface {
	GetFollowing(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error)
}

// URLValidator はURLの静的な安全性チェックのインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// TextSanitizer はプロフィール文字列のマークアップ除去のインターフェース。
type TextSanitizer interface {
	SanitizeText(raw string) string
}

// Recorder はフォロー一覧取得のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordFollowingFetch(source string)
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
}

// Config はフォロー一覧取得の設定。
type Config struct {
	PageSize     int
	FetchTimeout time.Duration
	StoreTimeout time.Duration
}

// Service はフォロー一覧取得のサービス層。
type Service struct {
	userRepo     repository.UserRepository
	snapshotRepo repository.FollowingSnapshotRepository
	fetcher      FollowingFetcher
	writer       *SnapshotWriter
	urlValidator URLValidator
	sanitizer    TextSanitizer
	recorder     Recorder
	logger       *slog.Logger
	config       Config
}

// NewService はServiceを生成する。urlValidator、sanitizer、recorderはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	snapshotRepo repository.FollowingSnapshotRepository,
	fetcher FollowingFetcher,
	writer *SnapshotWriter,
	urlValidator URLValidator,
	sanitizer TextSanitizer,
	recorder Recorder,
	logger *slog.Logger,
	config Config,
) *Service {
	if config.PageSize <= 0 {
		config.PageSize = defaultPageSize
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = defaultFetchTimeout
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaultStoreTimeout
	}
	return &Service{
		userRepo:     userRepo,
		snapshotRepo: snapshotRepo,
		fetcher:      fetcher,
		writer:       writer,
		urlValidator: urlValidator,
		sanitizer:    sanitizer,
		recorder:     recorder,
		logger:       logger,
		config:       config,
	}
}

// GetFollowing は内部IDのユーザーのフォロー一覧を返す。エラーは返さない。
//
//   - クレデンシャルがない、または取得に失敗した場合は空リスト
//   - 外部APIが失敗した場合は保存済みスナップショット、なければ空リスト
//   - 成功した場合は取得結果を返し、スナップショットの保存をバックグラウンドで開始する
func (s *Service) GetFollowing(ctx context.Context, internalID string) *Result {
	cred, ok := s.loadCredential(ctx, internalID)
	if !ok {
		return s.finish(&Result{Profiles: []model.ProfileSummary{}, Source: SourceEmpty})
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
	defer cancel()

	start := time.Now()
	users, err := s.fetcher.GetFollowing(fetchCtx, cred.AccessToken, cred.ProviderUserID, s.config.PageSize)
	s.recordLatency(time.Since(start))

	if err != nil {
		s.logFetchFailure(internalID, err)
		return s.finish(s.fallback(ctx, internalID))
	}
	s.recordStatus(http.StatusOK)

	profiles := s.normalize(internalID, users)
	if s.writer != nil {
		s.writer.Save(internalID, profiles)
	}

	return s.finish(&Result{Profiles: profiles, Source: SourceLive})
}

// loadCredential はストアから委任クレデンシャルを読み出す。
// 外部APIを呼べない場合はfalseを返す。
func (s *Service) loadCredential(ctx context.Context, internalID string) (*model.Credential, bool) {
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	cred, err := s.userRepo.FindCredential(storeCtx, internalID)
	if err != nil {
		s.logger.Error("クレデンシャルの取得に失敗しました",
			slog.String("internal_id", internalID),
			slog.String("operation", "credential_lookup"),
			slog.String("reason", "store_error"),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if cred == nil || cred.AccessToken == "" || cred.ProviderUserID == "" {
		s.logger.Warn("外部API呼び出しに使えるクレデンシャルがありません",
			slog.String("internal_id", internalID),
			slog.String("operation", "credential_lookup"),
			slog.String("reason", "credential_missing"),
		)
		return nil, false
	}
	return cred, true
}

// fallback は外部API失敗時に保存済みスナップショットを返す。
func (s *Service) fallback(ctx context.Context, internalID string) *Result {
	storeCtx, cancel := context.WithTimeout(ctx, s.config.StoreTimeout)
	defer cancel()

	snapshot, err := s.snapshotRepo.FindByUserID(storeCtx, internalID)
	if err != nil {
		s.logger.Error("フォロー一覧スナップショットの取得に失敗しました",
			slog.String("internal_id", internalID),
			slog.String("operation", "snapshot_read"),
			slog.String("error", err.Error()),
		)
		return &Result{Profiles: []model.ProfileSummary{}, Source: SourceEmpty}
	}
	if snapshot == nil {
		return &Result{Profiles: []model.ProfileSummary{}, Source: SourceEmpty}
	}

	profiles := snapshot.Following
	if profiles == nil {
		profiles = []model.ProfileSummary{}
	}
	return &Result{Profiles: profiles, Source: SourceSnapshot}
}

// normalize は外部APIのプロフィールを応答形式に変換する。順序は維持する。
// idのないエントリは除外し、除外件数をログに残す。
func (s *Service) normalize(internalID string, users []socialgraph.User) []model.ProfileSummary {
	profiles := make([]model.ProfileSummary, 0, len(users))
	dropped := 0
	for _, u := range users {
		if u.ID == "" {
			dropped++
			continue
		}
		p := model.ProfileSummary{
			ID:        u.ID,
			Name:      s.sanitize(u.Name),
			Username:  u.Username,
			AvatarURL: u.ProfileImageURL,
			Bio:       s.sanitize(u.Description),
		}
		if p.AvatarURL != "" && s.urlValidator != nil {
			if err := s.urlValidator.ValidateURL(p.AvatarURL); err != nil {
				p.AvatarURL = ""
			}
		}
		profiles = append(profiles, p)
	}
	if dropped > 0 {
		s.logger.Warn("idのないプロフィールを除外しました",
			slog.String("internal_id", internalID),
			slog.Int("dropped_count", dropped),
		)
	}
	return profiles
}

func (s *Service) sanitize(text string) string {
	if s.sanitizer == nil {
		return text
	}
	return s.sanitizer.SanitizeText(text)
}

func (s *Service) logFetchFailure(internalID string, err error) {
	attrs := []any{
		slog.String("internal_id", internalID),
		slog.String("operation", "following_fetch"),
		slog.String("error", err.Error()),
	}

	var apiErr *model.ExternalAPIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, slog.Int("http_status", apiErr.StatusCode))
		s.recordStatus(apiErr.StatusCode)
	} else if errors.Is(err, context.DeadlineExceeded) {
		attrs = append(attrs, slog.String("reason", "timeout"))
	}

	s.logger.Error("フォロー一覧の取得に失敗しました", attrs...)
}

func (s *Service) finish(result *Result) *Result {
	if s.recorder != nil {
		s.recorder.RecordFollowingFetch(string(result.Source))
	}
	return result
}

func (s *Service) recordStatus(status int) {
	if s.recorder != nil {
		s.recorder.RecordUpstreamStatus(status)
	}
}

func (s *Service) recordLatency(d time.Duration) {
	if s.recorder != nil {
		s.recorder.RecordUpstreamLatency(d)
	}
}
