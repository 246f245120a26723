package auth

import (
	"errors"
	"testing"

	"github.com/hitoshi/bookshelf/internal/model"
)

func TestClaimsFromSignIn_CarriesOnlyIDs(t *testing.T) {
	ev := twitterEvent(" 42 ")
	got := ClaimsFromSignIn("twitter_42", ev)

	want := SessionClaims{InternalID: "twitter_42", ProviderID: "42"}
	if got != want {
		t.Errorf("ClaimsFromSignIn() = %+v, want %+v", got, want)
	}
}

func TestClaimsFromSignIn_NilEvent(t *testing.T) {
	got := ClaimsFromSignIn("twitter_42", nil)
	if got.InternalID != "twitter_42" || got.ProviderID != "" {
		t.Errorf("ClaimsFromSignIn(nil) = %+v", got)
	}
}

func TestSignInEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ev      *SignInEvent
		wantErr bool
	}{
		{"valid", twitterEvent("42"), false},
		{"nil", nil, true},
		{"missing provider", &SignInEvent{ProviderUserID: "42"}, true},
		{"missing provider user id", &SignInEvent{Provider: "twitter"}, true},
		{"blank provider user id", &SignInEvent{Provider: "twitter", ProviderUserID: "  "}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ev.Validate()
			if tt.wantErr {
				if !errors.Is(err, model.ErrIdentityUnresolved) {
					t.Errorf("Validate() error = %v, want ErrIdentityUnresolved", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}
