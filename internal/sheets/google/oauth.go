package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gsheet "google.golang.org/api/sheets/v4"
)

// DefaultRedirectPort serves the OAuth callback during Authorize.
const DefaultRedirectPort = "8085"

// OAuthClient locates the OAuth client secret of a desktop app. JSON wins over File.
type OAuthClient struct {
	JSON string
	File string
}

func (c OAuthClient) configured() bool {
	return strings.TrimSpace(c.JSON) != "" || strings.TrimSpace(c.File) != ""
}

// Config parses the client secret for the spreadsheet scope.
func (c OAuthClient) Config() (*oauth2.Config, error) {
	var b []byte
	switch {
	case strings.TrimSpace(c.JSON) != "":
		b = []byte(c.JSON)
	case strings.TrimSpace(c.File) != "":
		raw, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read oauth client file: %w", err)
		}
		b = raw
	default:
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	return cfg, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", path, err)
	}
	return &tok, nil
}

// SaveToken writes tok to path, readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Authorize runs the installed-app flow: it prints the consent URL to out,
// waits for the redirect on localhost:port and exchanges the code. The
// redirect URI must be registered on the OAuth client.
func Authorize(ctx context.Context, cfg *oauth2.Config, port string, out io.Writer) (*oauth2.Token, error) {
	if port == "" {
		port = DefaultRedirectPort
	}
	cfg.RedirectURL = "http://localhost:" + port + "/callback"
	state := "billtrack-" + fmt.Sprint(time.Now().UnixNano())

	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			deliver(results, callbackResult{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "You may close this window and return to the terminal.")
			deliver(results, callbackResult{code: q.Get("code")})
		}
	})

	ln, err := net.Listen("tcp", "localhost:"+port)
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	fmt.Fprintf(out, "Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		tok, err := cfg.Exchange(ctx, res.code)
		if err != nil {
			return nil, fmt.Errorf("token exchange: %w", err)
		}
		return tok, nil
	case <-time.After(5 * time.Minute):
		return nil, errors.New("authorization timed out")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type callbackResult struct {
	code string
	err  error
}

// deliver keeps only the first callback.
func deliver(ch chan callbackResult, r callbackResult) {
	select {
	case ch <- r:
	default:
	}
}

// oauthHTTPClient returns a client that refreshes the saved token as needed.
func oauthHTTPClient(ctx context.Context, client OAuthClient, tokenFile string) (*http.Client, error) {
	cfg, err := client.Config()
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	return cfg.Client(ctx, tok), nil
}
