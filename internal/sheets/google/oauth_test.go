package google

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

const installedClient = `{"installed":{"client_id":"id-1","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func TestOAuthClientConfig(t *testing.T) {
	cfg, err := OAuthClient{JSON: installedClient}.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if cfg.ClientID != "id-1" {
		t.Fatalf("unexpected client id %q", cfg.ClientID)
	}
	if len(cfg.Scopes) != 1 || cfg.Scopes[0] != "https://www.googleapis.com/auth/spreadsheets" {
		t.Fatalf("unexpected scopes %v", cfg.Scopes)
	}

	if _, err := (OAuthClient{}).Config(); err == nil {
		t.Fatal("expected error without a client")
	}
	if _, err := (OAuthClient{File: "/non/existent/client.json"}).Config(); err == nil {
		t.Fatal("expected error for a missing client file")
	}
}

func TestCredentialsUsesOAuth(t *testing.T) {
	cases := []struct {
		creds Credentials
		want  bool
	}{
		{Credentials{JSON: "{}"}, false},
		{Credentials{TokenFile: "token.json"}, false},
		{Credentials{OAuth: OAuthClient{File: "client.json"}}, false},
		{Credentials{JSON: "{}", OAuth: OAuthClient{JSON: installedClient}, TokenFile: "token.json"}, true},
	}
	for i, c := range cases {
		if got := c.creds.UsesOAuth(); got != c.want {
			t.Errorf("case %d: UsesOAuth() = %v, want %v", i, got, c.want)
		}
	}
}

func TestSavedTokenAuthorizesRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	tok := &oauth2.Token{AccessToken: "access-1", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
	if err := SaveToken(path, tok); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer api.Close()

	client, err := oauthHTTPClient(context.Background(), OAuthClient{JSON: installedClient}, path)
	if err != nil {
		t.Fatalf("oauthHTTPClient: %v", err)
	}
	resp, err := client.Get(api.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer access-1" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestLoadTokenMissingFile(t *testing.T) {
	if _, err := LoadToken(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Fatal("expected error")
	}
}
