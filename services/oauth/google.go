package oauthsvc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/coffee3333/erudite/core/user"
)

var userInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

var ErrAuthFailed = errors.New("OAuth failed")

// GoogleService resolves a Google-issued access token to the profile it
// belongs to. The token is obtained by the frontend and exchanged here.
type GoogleService struct {
	client *http.Client
}

func NewGoogleService() *GoogleService {
	return &GoogleService{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type googleUserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Exchange calls Google's userinfo endpoint with the access token. An invalid
// or expired token, or an unverified email, yields ErrAuthFailed.
func (svc *GoogleService) Exchange(accessToken string) (user.OAuthProfile, error) {
	req, err := http.NewRequest(http.MethodGet, userInfoEndpoint, nil)
	if err != nil {
		return user.OAuthProfile{}, errors.Wrap(err, "preparing userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := svc.client.Do(req)
	if err != nil {
		return user.OAuthProfile{}, errors.Wrap(err, "calling userinfo endpoint")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return user.OAuthProfile{}, ErrAuthFailed
	}

	var info googleUserInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return user.OAuthProfile{}, errors.Wrap(err, "decoding userinfo response")
	}
	if info.Email == "" || !info.EmailVerified {
		return user.OAuthProfile{}, ErrAuthFailed
	}

	return user.OAuthProfile{Email: info.Email, Name: info.Name}, nil
}
