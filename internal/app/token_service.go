package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docindex/internal/model"
	"docindex/internal/pkg/storagepath"
)

// AccessToken is an ephemeral, request-scoped capability: a signed URL
// plus its expiry. Never persisted.
type AccessToken struct {
	URL        string `json:"url"`
	ExpiresIn  int    `json:"expires_in"`
	DocumentID string `json:"document_id"`
	SourceType string `json:"source_type"`
}

// TokenService issues short-lived download URLs. Local objects are
// signed against the tenant's own store; federated documents are
// relayed to their source's token endpoint, never re-signed here.
type TokenService struct {
	objects           ObjectStore
	httpClient        *http.Client
	localHosts        []string
	federatedTokenURL string
	minTTL            time.Duration
	maxTTL            time.Duration
}

type TokenOptions struct {
	LocalHosts        []string
	FederatedTokenURL string
	MinTTL            time.Duration
	MaxTTL            time.Duration
}

type TokenInput struct {
	Scope          model.OwnerScope
	DocumentURL    string
	ExpiresSeconds int
}

func NewTokenService(objects ObjectStore, opts TokenOptions) *TokenService {
	return &TokenService{
		objects:           objects,
		httpClient:        &http.Client{Timeout: 10 * time.Second},
		localHosts:        opts.LocalHosts,
		federatedTokenURL: strings.TrimSpace(opts.FederatedTokenURL),
		minTTL:            opts.MinTTL,
		maxTTL:            opts.MaxTTL,
	}
}

// Issue validates the TTL, classifies the URL, and produces either a
// locally signed URL or a federated relay. Out-of-range TTLs are
// rejected, never clamped.
func (s *TokenService) Issue(ctx context.Context, input TokenInput) (*AccessToken, error) {
	if input.Scope.TenantID == "" {
		return nil, fmt.Errorf("%w: missing tenant", model.ErrValidation)
	}

	ttl := time.Duration(input.ExpiresSeconds) * time.Second
	if ttl < s.minTTL || ttl > s.maxTTL {
		return nil, fmt.Errorf("%w: expires_seconds %d outside [%d, %d]",
			model.ErrValidation, input.ExpiresSeconds, int(s.minTTL.Seconds()), int(s.maxTTL.Seconds()))
	}

	source, err := storagepath.Classify(input.DocumentURL, s.localHosts)
	if err != nil {
		return nil, err
	}
	if source == storagepath.SourceFederated {
		return s.relayFederated(ctx, input)
	}
	return s.signLocal(ctx, input, ttl)
}

func (s *TokenService) signLocal(ctx context.Context, input TokenInput, ttl time.Duration) (*AccessToken, error) {
	bucket, key, err := storagepath.SplitObjectURL(input.DocumentURL)
	if err != nil {
		return nil, err
	}

	// The URL must address the requesting tenant's own bucket; signing
	// anything else would hand out another tenant's document.
	scope, documentID, err := storagepath.Parse(bucket, key)
	if err != nil {
		return nil, err
	}
	if scope.TenantID != input.Scope.TenantID {
		return nil, fmt.Errorf("%w: url addresses a different tenant", model.ErrValidation)
	}

	signed, err := s.objects.PresignGet(ctx, bucket, key, ttl)
	if err != nil {
		return nil, err
	}
	return &AccessToken{
		URL:        signed,
		ExpiresIn:  input.ExpiresSeconds,
		DocumentID: documentID,
		SourceType: string(storagepath.SourceLocal),
	}, nil
}

// relayFederated forwards the original URL and TTL to the federated
// source's token endpoint and relays its response verbatim, tagged as
// federated. This service has no authority over federated paths and
// never tries to re-derive one.
func (s *TokenService) relayFederated(ctx context.Context, input TokenInput) (*AccessToken, error) {
	if s.federatedTokenURL == "" {
		return nil, fmt.Errorf("%w: no federated token endpoint configured", model.ErrValidation)
	}

	payload, err := json.Marshal(map[string]any{
		"document_url":    input.DocumentURL,
		"expires_seconds": input.ExpiresSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal federated token request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.federatedTokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build federated token request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("federated token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read federated token response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("federated token response status %d: %s", resp.StatusCode, string(raw))
	}

	var token AccessToken
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("parse federated token response failed: %w", err)
	}
	token.SourceType = string(storagepath.SourceFederated)
	return &token, nil
}
