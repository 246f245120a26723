package identity

import (
	"errors"
	"testing"

	"github.com/hitoshi/bookshelf/internal/model"
)

func TestDeriveInternalID_NamespacesProviderID(t *testing.T) {
	got, err := DeriveInternalID("twitter", "42")
	if err != nil {
		t.Fatalf("DeriveInternalID() error = %v", err)
	}
	if got != "twitter_42" {
		t.Errorf("DeriveInternalID() = %q, want %q", got, "twitter_42")
	}
}

func TestDeriveInternalID_IsDeterministic(t *testing.T) {
	first, err := DeriveInternalID("twitter", "1234567890")
	if err != nil {
		t.Fatalf("DeriveInternalID() error = %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := DeriveInternalID("twitter", "1234567890")
		if err != nil {
			t.Fatalf("DeriveInternalID() error = %v", err)
		}
		if got != first {
			t.Fatalf("DeriveInternalID() = %q, want %q", got, first)
		}
	}
}

// 前後の空白やプロバイダー名の大文字小文字で内部IDが揺れないこと
func TestDeriveInternalID_NormalizesInput(t *testing.T) {
	got, err := DeriveInternalID("  Twitter ", " 42\n")
	if err != nil {
		t.Fatalf("DeriveInternalID() error = %v", err)
	}
	if got != "twitter_42" {
		t.Errorf("DeriveInternalID() = %q, want %q", got, "twitter_42")
	}
}

// 同じプロバイダーユーザーIDでもプロバイダーが違えば衝突しないこと
func TestDeriveInternalID_DistinctAcrossProviders(t *testing.T) {
	a, err := DeriveInternalID("twitter", "42")
	if err != nil {
		t.Fatalf("DeriveInternalID() error = %v", err)
	}
	b, err := DeriveInternalID("github", "42")
	if err != nil {
		t.Fatalf("DeriveInternalID() error = %v", err)
	}
	if a == b {
		t.Errorf("expected distinct ids, both = %q", a)
	}
}

func TestDeriveInternalID_RejectsUnusableInput(t *testing.T) {
	tests := []struct {
		name           string
		provider       string
		providerUserID string
	}{
		{"empty provider", "", "42"},
		{"blank provider", "   ", "42"},
		{"provider with separator", "twit_ter", "42"},
		{"empty provider user id", "twitter", ""},
		{"blank provider user id", "twitter", "  "},
		{"provider user id with space", "twitter", "4 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveInternalID(tt.provider, tt.providerUserID)
			if err == nil {
				t.Fatalf("expected error, got %q", got)
			}
			if !errors.Is(err, model.ErrIdentityUnresolved) {
				t.Errorf("error = %v, want ErrIdentityUnresolved", err)
			}
			if got != "" {
				t.Errorf("DeriveInternalID() = %q, want empty", got)
			}
		})
	}
}
