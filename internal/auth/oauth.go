package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the slice of GitHub's /user response we keep when a
// user links their GitHub account. GitHub returns far more fields; we
// only unmarshal what we display.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Email string `json:"email"` // empty if hidden in GitHub settings
}

// GitHubLink is the result of a completed linking flow: the profile of
// the linked account plus the OAuth access token to store as an
// AuthToken for later hook configuration against the GitHub API.
type GitHubLink struct {
	User        *GitHubUser
	AccessToken string
}

// GitHubProvider wraps the golang.org/x/oauth2 authorization-code flow
// for linking a GitHub account to an existing Notifico account.
//
// Linking is not login: the user is already authenticated with a
// password session when this flow starts. The exchanged access token is
// persisted as an AuthToken owned by that user.
type GitHubProvider struct {
	config *oauth2.Config
	// userAPI is overridable in tests; defaults to the real endpoint.
	userAPI string
}

// NewGitHubProvider creates a GitHubProvider. callbackURL must exactly
// match the callback registered with the GitHub OAuth application.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email", "repo:status"},
			Endpoint:     github.Endpoint,
		},
		userAPI: "https://api.github.com/user",
	}
}

// AuthURL returns the GitHub authorization URL to redirect the browser
// to. The state value must be random, stored in a cookie, and verified
// on callback — it is the CSRF defence for the whole flow.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the callback code for an access token and fetches the
// linked account's profile with it.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubLink, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// oauth2.Config.Client attaches the bearer token to every request.
	client := p.config.Client(ctx, oauthToken)

	resp, err := client.Get(p.userAPI)
	if err != nil {
		return nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &GitHubLink{
		User:        &ghUser,
		AccessToken: oauthToken.AccessToken,
	}, nil
}
