package following

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/bookshelf/internal/model"
	"github.com/hitoshi/bookshelf/internal/socialgraph"
)

var errRejected = errors.New("rejected")

type testEnv struct {
	svc       *Service
	snapshots *mockSnapshotRepo
	writer    *SnapshotWriter
	recorder  *mockRecorder
	logs      *bytes.Buffer
}

func newTestEnv(userRepo *mockUserRepo, fetcher FollowingFetcher) *testEnv {
	logs := &bytes.Buffer{}
	logger := newTestLogger(logs)
	snapshots := newMockSnapshotRepo()
	recorder := &mockRecorder{}
	writer := NewSnapshotWriter(snapshots, logger, recorder, time.Second)
	svc := NewService(userRepo, snapshots, fetcher, writer, nil, nil, recorder, logger, Config{
		PageSize:     100,
		FetchTimeout: time.Second,
		StoreTimeout: time.Second,
	})
	return &testEnv{svc: svc, snapshots: snapshots, writer: writer, recorder: recorder, logs: logs}
}

func threeUsers() []socialgraph.User {
	return []socialgraph.User{
		{ID: "100", Name: "Ann", Username: "ann", ProfileImageURL: "https://pbs.twimg.com/100.png"},
		{ID: "200", Name: "Ben", Username: "ben", Description: "reader"},
		{ID: "300", Name: "Cat", Username: "cat"},
	}
}

func TestGetFollowing_Live_ReturnsProfilesAndSavesSnapshot(t *testing.T) {
	fetcher := &mockFetcher{
		getFollowingFn: func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
			if accessToken != "token-42" || providerUserID != "42" || maxResults != 100 {
				t.Errorf("GetFollowing(%q, %q, %d)", accessToken, providerUserID, maxResults)
			}
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected fetch context to carry a deadline")
			}
			return threeUsers(), nil
		},
	}
	env := newTestEnv(credentialFor("twitter_42", "42", "token-42"), fetcher)

	result := env.svc.GetFollowing(context.Background(), "twitter_42")
	env.writer.Wait()

	if result.Source != SourceLive {
		t.Errorf("Source = %q, want %q", result.Source, SourceLive)
	}
	if len(result.Profiles) != 3 {
		t.Fatalf("len(Profiles) = %d, want 3", len(result.Profiles))
	}
	for i, want := range []string{"100", "200", "300"} {
		if result.Profiles[i].ID != want {
			t.Errorf("Profiles[%d].ID = %q, want %q", i, result.Profiles[i].ID, want)
		}
	}
	if result.Profiles[0].AvatarURL != "https://pbs.twimg.com/100.png" || result.Profiles[1].Bio != "reader" {
		t.Errorf("profile fields not mapped: %+v", result.Profiles)
	}

	snapshot := env.snapshots.get("twitter_42")
	if snapshot == nil {
		t.Fatal("expected snapshot to be saved")
	}
	if len(snapshot.Following) != 3 {
		t.Fatalf("snapshot has %d profiles, want 3", len(snapshot.Following))
	}
	for i := range snapshot.Following {
		if snapshot.Following[i] != result.Profiles[i] {
			t.Errorf("snapshot[%d] = %+v, want %+v", i, snapshot.Following[i], result.Profiles[i])
		}
	}
}

// 成功した空の結果でもスナップショットは上書きされること
func TestGetFollowing_LiveEmpty_OverwritesSnapshot(t *testing.T) {
	fetcher := &mockFetcher{
		getFollowingFn: func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
			return []socialgraph.User{}, nil
		},
	}
	env := newTestEnv(credentialFor("twitter_42", "42", "t"), fetcher)
	env.snapshots.snapshots["twitter_42"] = &model.FollowingSnapshot{
		UserID:    "twitter_42",
		Following: []model.ProfileSummary{{ID: "old"}},
	}

	result := env.svc.GetFollowing(context.Background(), "twitter_42")
	env.writer.Wait()

	if result.Source != SourceLive || result.Profiles == nil || len(result.Profiles) != 0 {
		t.Errorf("result = %+v, want live empty list", result)
	}
	if got := env.snapshots.get("twitter_42"); got == nil || len(got.Following) != 0 {
		t.Errorf("snapshot = %+v, want overwritten with empty list", got)
	}
}

func TestGetFollowing_MissingCredential_ReturnsEmptyWithoutCalls(t *testing.T) {
	tests := []struct {
		name string
		repo *mockUserRepo
	}{
		{"no record", &mockUserRepo{}},
		{"empty token", credentialFor("twitter_42", "42", "")},
		{"empty provider id", credentialFor("twitter_42", "", "t")},
		{"store error", &mockUserRepo{
			findCredentialFn: func(ctx context.Context, id string) (*model.Credential, error) {
				return nil, errors.New("db down")
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{}
			env := newTestEnv(tt.repo, fetcher)
			// スナップショットがあってもクレデンシャルがなければ使わない
			env.snapshots.snapshots["twitter_42"] = &model.FollowingSnapshot{
				UserID:    "twitter_42",
				Following: []model.ProfileSummary{{ID: "cached"}},
			}

			result := env.svc.GetFollowing(context.Background(), "twitter_42")
			env.writer.Wait()

			if result.Source != SourceEmpty {
				t.Errorf("Source = %q, want %q", result.Source, SourceEmpty)
			}
			if result.Profiles == nil || len(result.Profiles) != 0 {
				t.Errorf("Profiles = %#v, want empty non-nil slice", result.Profiles)
			}
			if fetcher.calls != 0 {
				t.Errorf("external API called %d times, want 0", fetcher.calls)
			}
			if env.snapshots.upsertCount() != 0 {
				t.Error("snapshot should not be written")
			}
		})
	}
}

func TestGetFollowing_UpstreamFailure_ServesSnapshot(t *testing.T) {
	fetcher := &mockFetcher{
		getFollowingFn: func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
			return nil, &model.ExternalAPIError{StatusCode: http.StatusTooManyRequests}
		},
	}
	env := newTestEnv(credentialFor("twitter_42", "42", "secret-token"), fetcher)
	cached := []model.ProfileSummary{{ID: "1", Name: "Cached"}, {ID: "2", Name: "Also"}}
	env.snapshots.snapshots["twitter_42"] = &model.FollowingSnapshot{UserID: "twitter_42", Following: cached}

	result := env.svc.GetFollowing(context.Background(), "twitter_42")
	env.writer.Wait()

	if result.Source != SourceSnapshot {
		t.Errorf("Source = %q, want %q", result.Source, SourceSnapshot)
	}
	if len(result.Profiles) != 2 || result.Profiles[0].ID != "1" || result.Profiles[1].ID != "2" {
		t.Errorf("Profiles = %+v, want cached snapshot", result.Profiles)
	}
	if env.snapshots.upsertCount() != 0 {
		t.Error("snapshot should not be rewritten on failure")
	}

	logs := env.logs.String()
	for _, want := range []string{`"internal_id":"twitter_42"`, `"operation":"following_fetch"`, `"http_status":429`} {
		if !strings.Contains(logs, want) {
			t.Errorf("log output missing %s: %s", want, logs)
		}
	}
	if strings.Contains(logs, "secret-token") {
		t.Error("access token leaked into logs")
	}
	if len(env.recorder.statuses) != 1 || env.recorder.statuses[0] != http.StatusTooManyRequests {
		t.Errorf("recorded statuses = %v, want [429]", env.recorder.statuses)
	}
}

func TestGetFollowing_UpstreamFailure_NoSnapshot_ReturnsEmpty(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"unauthorized", &model.ExternalAPIError{StatusCode: http.StatusUnauthorized}},
		{"server error", &model.ExternalAPIError{StatusCode: http.StatusInternalServerError}},
		{"transport", errors.New("connection reset")},
		{"timeout", context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &mockFetcher{
				getFollowingFn: func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
					return nil, tt.err
				},
			}
			env := newTestEnv(credentialFor("twitter_42", "42", "t"), fetcher)

			result := env.svc.GetFollowing(context.Background(), "twitter_42")
			env.writer.Wait()

			if result.Source != SourceEmpty {
				t.Errorf("Source = %q, want %q", result.Source, SourceEmpty)
			}
			if result.Profiles == nil || len(result.Profiles) != 0 {
				t.Errorf("Profiles = %#v, want empty non-nil slice", result.Profiles)
			}
		})
	}
}

func TestGetFollowing_UpstreamFailure_SnapshotReadError_ReturnsEmpty(t *testing.T) {
	fetcher := &mockFetcher{
		getFollowingFn: func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
			return nil, &model.ExternalAPIError{StatusCode: http.StatusBadGateway}
		},
	}
	env := newTestEnv(credentialFor("twitter_42", "42", "t"), fetcher)
	env.snapshots.findErr = errors.New("db down")

	result := env.svc.GetFollowing(context.Background(), "twitter_42")

	if result.Source != SourceEmpty || len(result.Profiles) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

// スナップショットの保存失敗は応答に影響しないこと
func TestGetFollowing_SnapshotWriteFailure_StillLive(t *testing.T) {
	fetcher := &mockFetcher{
		getFollowingFn: func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
			return threeUsers(), nil
		},
	}
	env := newTestEnv(credentialFor("twitter_42", "42", "t"), fetcher)
	env.snapshots.upsertErr = errors.New("disk full")

	result := env.svc.GetFollowing(context.Background(), "twitter_42")
	env.writer.Wait()

	if result.Source != SourceLive || len(result.Profiles) != 3 {
		t.Errorf("result = %+v, want 3 live profiles", result)
	}
	if !strings.Contains(env.logs.String(), `"operation":"snapshot_write"`) {
		t.Error("expected snapshot write failure to be logged")
	}
	if len(env.recorder.writes) != 1 || env.recorder.writes[0] {
		t.Errorf("recorded writes = %v, want [false]", env.recorder.writes)
	}
}

func TestGetFollowing_NormalizesProfiles(t *testing.T) {
	fetcher := &mockFetcher{
		getFollowingFn: func(ctx context.Context, accessToken, providerUserID string, maxResults int) ([]socialgraph.User, error) {
			return []socialgraph.User{
				{ID: "1", Name: "One", Username: "one", ProfileImageURL: "http://bad.example/1.png", Description: "bio"},
				{ID: "", Name: "Nobody"},
				{ID: "2", Name: "Two", Username: "two", ProfileImageURL: "https://ok.example/2.png"},
			}, nil
		},
	}
	logs := &bytes.Buffer{}
	logger := newTestLogger(logs)
	snapshots := newMockSnapshotRepo()
	writer := NewSnapshotWriter(snapshots, logger, nil, time.Second)
	svc := NewService(
		credentialFor("twitter_42", "42", "t"), snapshots, fetcher, writer,
		&mockURLValidator{rejected: map[string]bool{"http://bad.example/1.png": true}},
		bracketSanitizer{}, nil, logger, Config{},
	)

	result := svc.GetFollowing(context.Background(), "twitter_42")
	writer.Wait()

	if len(result.Profiles) != 2 {
		t.Fatalf("len(Profiles) = %d, want 2 (entry without id dropped)", len(result.Profiles))
	}
	first := result.Profiles[0]
	if first.AvatarURL != "" {
		t.Errorf("rejected avatar URL should be dropped, got %q", first.AvatarURL)
	}
	if first.Name != "[One]" || first.Bio != "[bio]" {
		t.Errorf("name/bio should be sanitized, got %q / %q", first.Name, first.Bio)
	}
	if first.Username != "one" {
		t.Errorf("Username = %q, want %q", first.Username, "one")
	}
	if result.Profiles[1].AvatarURL != "https://ok.example/2.png" {
		t.Errorf("valid avatar URL should be kept, got %q", result.Profiles[1].AvatarURL)
	}
	if !strings.Contains(logs.String(), `"dropped_count":1`) {
		t.Errorf("expected dropped_count=1 in logs: %s", logs.String())
	}
}

func TestGetFollowing_RecordsSource(t *testing.T) {
	env := newTestEnv(&mockUserRepo{}, &mockFetcher{})

	env.svc.GetFollowing(context.Background(), "twitter_42")

	if len(env.recorder.sources) != 1 || env.recorder.sources[0] != string(SourceEmpty) {
		t.Errorf("recorded sources = %v, want [empty]", env.recorder.sources)
	}
}

// 実際のHTTPクライアントを通した一連の流れ
func TestGetFollowing_EndToEndWithSocialGraphClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/following" {
			t.Errorf("path = %q, want /users/42/following", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer stored-token" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":"7","name":"Seven","username":"seven"},
			{"id":"8","name":"Eight","username":"eight"},
			{"id":"9","name":"Nine","username":"nine"}
		]}`))
	}))
	defer server.Close()

	logs := &bytes.Buffer{}
	logger := newTestLogger(logs)
	client := socialgraph.NewClient(server.Client(), server.URL, logger)
	env := newTestEnv(credentialFor("twitter_42", "42", "stored-token"), client)

	result := env.svc.GetFollowing(context.Background(), "twitter_42")
	env.writer.Wait()

	want := []string{"7", "8", "9"}
	if len(result.Profiles) != len(want) {
		t.Fatalf("len(Profiles) = %d, want %d", len(result.Profiles), len(want))
	}
	snapshot := env.snapshots.get("twitter_42")
	if snapshot == nil || len(snapshot.Following) != len(want) {
		t.Fatalf("snapshot = %+v, want %d profiles", snapshot, len(want))
	}
	for i, id := range want {
		if result.Profiles[i].ID != id {
			t.Errorf("Profiles[%d].ID = %q, want %q", i, result.Profiles[i].ID, id)
		}
		if snapshot.Following[i].ID != id {
			t.Errorf("snapshot[%d].ID = %q, want %q", i, snapshot.Following[i].ID, id)
		}
	}
}
