package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FederatedSubject is the stable external identity returned by the provider
// for a one-time login code.
type FederatedSubject struct {
	ExternalID string
	NIF        int64
}

// FederatedProvider exchanges a one-time login code with the external identity
// provider for a verified subject.
type FederatedProvider interface {
	Exchange(ctx context.Context, code string) (FederatedSubject, error)
}

// HTTPFederatedProvider posts the code to the provider's token endpoint and
// verifies the returned ID token with the shared HS256 secret.
type HTTPFederatedProvider struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	IDTokenKey   []byte
	Client       *http.Client
}

type federatedClaims struct {
	NIF int64 `json:"nif"`
	jwt.RegisteredClaims
}

var errFederatedExchange = errors.New("auth: federated code exchange failed")

func (p *HTTPFederatedProvider) Exchange(ctx context.Context, code string) (FederatedSubject, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return FederatedSubject{}, errFederatedExchange
	}
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.ClientID)
	form.Set("client_secret", p.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return FederatedSubject{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return FederatedSubject{}, fmt.Errorf("%w: %v", errFederatedExchange, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return FederatedSubject{}, errFederatedExchange
	}

	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return FederatedSubject{}, errFederatedExchange
	}
	return p.verifyIDToken(body.IDToken)
}

func (p *HTTPFederatedProvider) verifyIDToken(raw string) (FederatedSubject, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FederatedSubject{}, errFederatedExchange
	}
	parsed, err := jwt.ParseWithClaims(raw, &federatedClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errFederatedExchange
		}
		return p.IDTokenKey, nil
	})
	if err != nil {
		return FederatedSubject{}, errFederatedExchange
	}
	claims, ok := parsed.Claims.(*federatedClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return FederatedSubject{}, errFederatedExchange
	}
	return FederatedSubject{ExternalID: claims.Subject, NIF: claims.NIF}, nil
}
