package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// GoogleIdentity is the verified subject and email of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
}

// GoogleVerifier validates Google-issued ID tokens against a client id.
type GoogleVerifier struct {
	clientID string
}

// NewGoogleVerifier returns a verifier bound to the given OAuth client id.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

// Verify checks the token's signature, expiry and audience and returns the
// identity it asserts.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate google token: %w", err)
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("google token has no email claim")
	}

	return &GoogleIdentity{Subject: payload.Subject, Email: email}, nil
}
