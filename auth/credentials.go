// Package auth loads stored OAuth2 user credentials and opens the
// authorized gRPC channel to the Assistant API.
package auth

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcoauth "google.golang.org/grpc/credentials/oauth"
)

// Credentials is the on-disk JSON produced by the OAuth bootstrap tool.
type Credentials struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	Scopes       []string `json:"scopes"`
}

// LoadTokenSource reads stored credentials from path and returns an
// auto-refreshing token source for them.
func LoadTokenSource(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if creds.ClientID == "" || creds.RefreshToken == "" {
		return nil, errors.New("credentials are missing client_id or refresh_token")
	}

	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       creds.Scopes,
	}
	if creds.TokenURI != "" {
		conf.Endpoint.TokenURL = creds.TokenURI
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}), nil
}

// Dial opens a TLS gRPC channel to endpoint attaching the token source as
// per-RPC credentials.
func Dial(endpoint string, ts oauth2.TokenSource) (*grpc.ClientConn, error) {
	conn, err := grpc.Dial(endpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})),
		grpc.WithPerRPCCredentials(grpcoauth.TokenSource{TokenSource: ts}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	return conn, nil
}
