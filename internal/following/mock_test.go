package following

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/repository"
	"github.com/hitoshi/bookshelf/internal/socialgraph"
)

// --- モック定義 ---

type mockUserRepo struct {
	findCredentialFn func(ctx context.Context, id string) (*model.Credential, error)
}

func (m *mockUserRepo) Upsert(_ context.Context, _ *model.User) error { return nil }

func (m *mockUserRepo) FindByID(_ context.Context, _ string) (*model.User, error) { return nil, nil }

func (m *mockUserRepo) FindCredential(ctx context.Context, id string) (*model.Credential, error) {
	if m.findCredentialFn != nil {
		return m.findCredentialFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) DeleteByID(_ context.Context, _ string) error { return nil }

// mockSnapshotRepo はメモリ上にスナップショットを保持する。SnapshotWriterのゴルーチンから呼ばれる。
type mockSnapshotRepo struct {
	mu        sync.Mutex
	snapshots map[string]*model.FollowingSnapshot
	upserts   int
	upsertErr error
	findErr   error
	upsertCtx context.Context
}

func newMockSnapshotRepo() *mockSnapshotRepo {
	return &mockSnapshotRepo{snapshots: make(map[string]*model.FollowingSnapshot)}
}

func (m *mockSnapshotRepo) Upsert(ctx context.Context, snapshot *model.FollowingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.upsertCtx = ctx
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.snapshots[snapshot.UserID] = snapshot
	return nil
}

func (m *mockSnapshotRepo) FindByUserID(_ context.Context, userID string) (*model.FollowingSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.snapshots[userID], nil
}

func (m *mockSnapshotRepo) get(userID string) *model.FollowingSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[userID]
}

func (m *mockSnapshotRepo) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

type mockFetcher struct {
	getFollowingFn func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error)
	calls          int
}

func (m *mockFetcher) GetFollowing(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
	m.calls++
	if m.getFollowingFn != nil {
		return m.getFollowingFn(ctx, accessToken, providerUserID, maxResults)
	}
	return []socialgraph.User{}, nil
}

type mockRecorder struct {
	mu       sync.Mutex
	sources  []string
	statuses []int
	writes   []bool
}

func (m *mockRecorder) RecordFollowingFetch(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, source)
}

func (m *mockRecorder) RecordUpstreamStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statusCode)
}

func (m *mockRecorder) RecordUpstreamLatency(_ time.Duration) {}

func (m *mockRecorder) RecordSnapshotWrite(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, success)
}

type mockURLValidator struct {
	rejected map[string]bool
}

func (m *mockURLValidator) ValidateURL(rawURL string) error {
	if m.rejected[rawURL] {
		return errRejected
	}
	return nil
}

type bracketSanitizer struct{}

func (bracketSanitizer) SanitizeText(raw string) string { return "[" + raw + "]" }

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.FollowingSnapshotRepository = (*mockSnapshotRepo)(nil)
var _ FollowingFetcher = (*mockFetcher)(nil)
var _ Recorder = (*mockRecorder)(nil)
var _ SnapshotRecorder = (*mockRecorder)(nil)
var _ URLValidator = (*mockURLValidator)(nil)
var _ TextSanitizer = bracketSanitizer{}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func credentialFor(internalID, providerID, token string) *mockUserRepo {
	return &mockUserRepo{
		findCredentialFn: func(ctx context.Context, id string) (*model.Credential, error) {
			if id != internalID {
				return nil, nil
			}
			return &model.Credential{ProviderUserID: providerID, AccessToken: token}, nil
		},
	}
}
