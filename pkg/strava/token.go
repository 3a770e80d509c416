package strava

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	shared "github.com/stravapress/server/pkg"
	"github.com/stravapress/server/pkg/fault"
	"github.com/stravapress/server/pkg/infrastructure/metrics"
)

const (
	// DefaultBaseURL is the Strava site root.
	DefaultBaseURL = "https://www.strava.com"

	// refreshSkew refreshes tokens expiring within the next minute.
	refreshSkew = 60 * time.Second

	oauthScope = "read,activity:read_all"
)

// TokenManager owns the OAuth credential lifecycle: exchange, refresh,
// persistence, expiry check, disconnect. Expiry is re-read from the option
// store on every call, so multiple processes sharing the store stay
// consistent. There is no refresh mutex: concurrent refreshes are a benign
// race, both persist equivalently fresh tokens.
type TokenManager struct {
	settings shared.SettingsRepository
	client   *http.Client
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

func NewTokenManager(settings shared.SettingsRepository) *TokenManager {
	return &TokenManager{
		settings: settings,
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  DefaultBaseURL,
		logger:   slog.Default().With("component", "token-manager"),
		now:      time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    int64           `json:"expires_at"`
	Athlete      json.RawMessage `json:"athlete"`
	Message      string          `json:"message"`
	Errors       json.RawMessage `json:"errors"`
}

// AccessToken returns a token valid for at least the refresh skew,
// refreshing first when the persisted one is expired or about to expire.
func (m *TokenManager) AccessToken(ctx context.Context) (string, error) {
	expiresRaw, err := m.settings.Get(ctx, shared.OptionTokenExpiresAt)
	if err != nil {
		return "", fault.Wrap(fault.KindNoCredentials, err, "could not read stored credential")
	}
	expiresAt, _ := strconv.ParseInt(expiresRaw, 10, 64)

	if m.now().Unix() < expiresAt-int64(refreshSkew.Seconds()) {
		token, err := m.settings.Get(ctx, shared.OptionAccessToken)
		if err != nil {
			return "", fault.Wrap(fault.KindNoCredentials, err, "could not read stored credential")
		}
		if token != "" {
			return token, nil
		}
	}

	token, err := m.Refresh(ctx)
	if err != nil {
		return "", fault.Wrap(fault.KindNoCredentials, err, "no valid access token, please reconnect to Strava")
	}
	return token, nil
}

// Refresh exchanges the stored refresh token for a new access token and
// persists the rotated credential. Stored state is never mutated on error.
func (m *TokenManager) Refresh(ctx context.Context) (string, error) {
	refreshToken, err := m.settings.Get(ctx, shared.OptionRefreshToken)
	if err != nil {
		return "", fault.Wrap(fault.KindStore, err, "could not read refresh token")
	}
	clientID, clientSecret, err := m.clientCredentials(ctx)
	if err != nil {
		return "", err
	}
	if refreshToken == "" || clientID == "" || clientSecret == "" {
		return "", fault.New(fault.KindNoCredentials, "missing refresh token or client credentials")
	}

	result, err := m.postToken(ctx, url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return "", err
	}

	err = m.settings.SetMany(ctx, map[string]string{
		shared.OptionAccessToken:    result.AccessToken,
		shared.OptionRefreshToken:   result.RefreshToken,
		shared.OptionTokenExpiresAt: strconv.FormatInt(result.ExpiresAt, 10),
	})
	if err != nil {
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return "", fault.Wrap(fault.KindStore, err, "failed to persist refreshed token")
	}

	metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	m.logger.Info("Token refreshed", "expires_at", result.ExpiresAt)
	return result.AccessToken, nil
}

// Exchange performs the one-shot authorization-code exchange and persists
// the resulting credential atomically.
func (m *TokenManager) Exchange(ctx context.Context, code string) (*Credential, error) {
	clientID, clientSecret, err := m.clientCredentials(ctx)
	if err != nil {
		return nil, err
	}
	if clientID == "" || clientSecret == "" {
		return nil, fault.New(fault.KindOAuth, "Client ID and Secret are required")
	}

	result, err := m.postToken(ctx, url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return nil, err
	}

	athlete := "{}"
	if len(result.Athlete) > 0 {
		athlete = string(result.Athlete)
	}

	// All four fields land in one transaction so a credential is never
	// persisted half-written.
	err = m.settings.SetMany(ctx, map[string]string{
		shared.OptionAccessToken:    result.AccessToken,
		shared.OptionRefreshToken:   result.RefreshToken,
		shared.OptionTokenExpiresAt: strconv.FormatInt(result.ExpiresAt, 10),
		shared.OptionAthlete:        athlete,
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindStore, err, "failed to persist credential")
	}

	return &Credential{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
		Athlete:      result.Athlete,
	}, nil
}

// Disconnect deauthorizes with Strava (best effort) and clears the stored
// credential. Safe to call when already disconnected.
func (m *TokenManager) Disconnect(ctx context.Context) error {
	if token, err := m.AccessToken(ctx); err == nil && token != "" {
		deauthCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(deauthCtx, "POST", m.baseURL+"/oauth/deauthorize", nil)
		if err == nil {
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := m.client.Do(req)
			if err != nil {
				m.logger.Warn("Deauthorize request failed", "error", err)
			} else {
				resp.Body.Close()
			}
		}
	}

	err := m.settings.Delete(ctx,
		shared.OptionAccessToken,
		shared.OptionRefreshToken,
		shared.OptionTokenExpiresAt,
		shared.OptionAthlete,
	)
	if err != nil {
		return fault.Wrap(fault.KindStore, err, "failed to clear stored credential")
	}

	m.logger.Info("Disconnected from Strava")
	return nil
}

// Connected reports whether a credential is stored.
func (m *TokenManager) Connected(ctx context.Context) bool {
	refreshToken, err := m.settings.Get(ctx, shared.OptionRefreshToken)
	return err == nil && refreshToken != ""
}

// Athlete returns the stored athlete profile, nil when disconnected.
func (m *TokenManager) Athlete(ctx context.Context) json.RawMessage {
	raw, err := m.settings.Get(ctx, shared.OptionAthlete)
	if err != nil || raw == "" {
		return nil
	}
	return json.RawMessage(raw)
}

// AuthCodeURL builds the Strava authorization URL the user is sent to.
func (m *TokenManager) AuthCodeURL(ctx context.Context, redirectURI string) (string, error) {
	clientID, err := m.settings.Get(ctx, shared.OptionClientID)
	if err != nil {
		return "", fault.Wrap(fault.KindStore, err, "could not read client id")
	}
	if clientID == "" {
		return "", fault.New(fault.KindOAuth, "Client ID is not configured")
	}

	query := url.Values{
		"client_id":       {clientID},
		"redirect_uri":    {redirectURI},
		"response_type":   {"code"},
		"scope":           {oauthScope},
		"approval_prompt": {"auto"},
	}
	return m.baseURL + "/oauth/authorize?" + query.Encode(), nil
}

func (m *TokenManager) clientCredentials(ctx context.Context) (string, string, error) {
	clientID, err := m.settings.Get(ctx, shared.OptionClientID)
	if err != nil {
		return "", "", fault.Wrap(fault.KindStore, err, "could not read client credentials")
	}
	clientSecret, err := m.settings.Get(ctx, shared.OptionClientSecret)
	if err != nil {
		return "", "", fault.Wrap(fault.KindStore, err, "could not read client credentials")
	}
	return clientID, clientSecret, nil
}

func (m *TokenManager) postToken(ctx context.Context, data url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", m.baseURL+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fault.Wrap(fault.KindTransport, err, "failed to read token response")
	}

	var result tokenResponse
	if err := json.Unmarshal(body, &result); err != nil && resp.StatusCode == http.StatusOK {
		return nil, fault.Wrap(fault.KindOAuth, err, "failed to decode token response")
	}

	if resp.StatusCode != http.StatusOK || len(result.Errors) > 0 || result.AccessToken == "" {
		message := result.Message
		if message == "" {
			message = "OAuth error"
		}
		return nil, fault.New(fault.KindOAuth, "%s", message).WithStatus(resp.StatusCode)
	}

	return &result, nil
}
