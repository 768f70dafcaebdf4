// Package services contains the server-side business logic: authentication,
// ownership checks around entries and groups, account administration and
// vault export.
package services

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/psm/internal/common"
	"github.com/dmitrijs2005/psm/internal/cryptox"
	"github.com/dmitrijs2005/psm/internal/dbx"
	"github.com/dmitrijs2005/psm/internal/logging"
	"github.com/dmitrijs2005/psm/internal/server/auth"
	"github.com/dmitrijs2005/psm/internal/server/config"
	"github.com/dmitrijs2005/psm/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService verifies credentials, issues and rotates tokens and turns an
// access token back into a principal.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	encoder                      cryptox.PasswordEncoder
	revocations                  auth.RevocationStore
	security                     logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, encoder cryptox.PasswordEncoder,
	revocations auth.RevocationStore, security logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		encoder:                      encoder,
		revocations:                  revocations,
		security:                     security.With("channel", logging.SecurityChannel),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenTTL,
		refreshTokenValidityDuration: cfg.RefreshTokenTTL,
	}
}

// Authenticate checks username and password. An unknown user and a wrong
// password both return common.ErrorUnauthorized; the reason only reaches the
// security log, never the attempted password.
func (s *AuthService) Authenticate(ctx context.Context, username, password, remoteAddr string) (*auth.Principal, error) {
	user, err := s.repomanager.Users(s.db).GetByNameFetchRoles(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// keep the timing of an unknown user close to a wrong password
			s.encoder.Matches(password, s.dummy())
			s.security.Warn(ctx, "authentication failed",
				"username", username, "reason", "unknown user", "remote_addr", remoteAddr)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	if !s.encoder.Matches(password, user.Password) {
		s.security.Warn(ctx, "authentication failed",
			"username", username, "reason", "bad credentials", "remote_addr", remoteAddr)
		return nil, common.ErrorUnauthorized
	}

	s.security.Info(ctx, "authentication succeeded", "username", user.Name, "remote_addr", remoteAddr)
	return auth.NewPrincipal(user), nil
}

// Login authenticates and issues a new TokenPair.
func (s *AuthService) Login(ctx context.Context, username, password, remoteAddr string) (*TokenPair, error) {
	p, err := s.Authenticate(ctx, username, password, remoteAddr)
	if err != nil {
		return nil, err
	}
	return s.generateTokenPair(ctx, p.UserID, p.Name, s.db)
}

// Refresh consumes a refresh token and returns a fresh TokenPair. The
// token is deleted and the new pair issued in one transaction, so a token
// can be redeemed at most once. Expired tokens are still removed and yield
// ErrRefreshTokenExpired.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var (
		pair    *TokenPair
		expired bool
	)
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		token, err := s.repomanager.RefreshTokens(tx).Consume(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error consuming refresh token: %w", err)
		}
		if token.Expires.Before(time.Now()) {
			// commit the removal
			expired = true
			return nil
		}

		user, err := s.repomanager.Users(tx).GetByIDFetchRoles(ctx, token.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error loading user: %w", err)
		}
		pair, err = s.generateTokenPair(ctx, user.ID, user.Name, tx)
		return err
	}); err != nil {
		return nil, err
	}
	if expired {
		return nil, common.ErrRefreshTokenExpired
	}
	return pair, nil
}

// Logout revokes the access token until it expires and drops the refresh
// token when it belongs to the same user.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.TTL()); err != nil {
		return fmt.Errorf("error revoking token: %w", err)
	}

	if refreshToken == "" {
		return nil
	}
	repo := s.repomanager.RefreshTokens(s.db)
	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.UserID != claims.UserID {
		return nil
	}
	if err := repo.Delete(ctx, refreshToken); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

// ResolvePrincipal turns an access token into the current principal. The
// user is reloaded on every call so role changes and deletions apply at once.
func (s *AuthService) ResolvePrincipal(ctx context.Context, accessToken string) (*auth.Principal, error) {
	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("error checking revocation: %w", err)
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}

	user, err := s.repomanager.Users(s.db).GetByIDFetchRoles(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return auth.NewPrincipal(user), nil
}

// --- helpers below ---

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.encoder.Encode(hex.EncodeToString(common.GenerateRandByteArray(16)))
	})
	return s.dummyHash
}

func (s *AuthService) generateAccessToken(userID int64, name string) (string, error) {
	return auth.GenerateToken(userID, name, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *AuthService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *AuthService) generateTokenPair(ctx context.Context, userID int64, name string, tx dbx.DBTX) (*TokenPair, error) {
	access, err := s.generateAccessToken(userID, name)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, userID, refresh, s.refreshTokenValidityDuration); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
