package provider

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"taskhub/internal/pkg/errors"
	"taskhub/internal/pkg/validator"
	"taskhub/internal/platform/models"
)

type userRow struct {
	ID           string
	Email        string
	PasswordHash sql.NullString
	Subject      sql.NullString
}

func (p *SQLProvider) userBy(ctx context.Context, column, value string) (*userRow, error) {
	u := &userRow{}
	err := p.db.QueryRowContext(ctx, `SELECT id, email, password_hash, federated_subject FROM users WHERE `+column+` = ?`, value).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Subject)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func (p *SQLProvider) Register(ctx context.Context, email, password string) (*Grant, error) {
	email = validator.NormalizeEmail(email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, errors.NewAuthError(errors.ReasonInvalidEmail, err)
	}
	if err := validator.ValidatePassword(password); err != nil {
		return nil, errors.NewAuthError(errors.ReasonWeakPassword, err)
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	existing, err := p.userBy(ctx, "email", email)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if existing != nil {
		return nil, errors.NewAuthError(errors.ReasonEmailTaken, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("register: hash password: %w", err)
	}

	id := "usr_" + uuid.NewString()
	now := time.Now().Unix()
	if _, err := p.db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, last_login_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, email, string(hash), now, now); err != nil {
		if isUniqueViolation(err) {
			return nil, errors.NewAuthError(errors.ReasonEmailTaken, nil)
		}
		return nil, fmt.Errorf("register: %w", err)
	}

	return p.openSession(ctx, models.Identity{ID: id, Email: email})
}

func (p *SQLProvider) Authenticate(ctx context.Context, email, password string) (*Grant, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	u, err := p.userBy(ctx, "email", validator.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if u == nil || !u.PasswordHash.Valid {
		return nil, errors.NewAuthError(errors.ReasonInvalidCredentials, nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash.String), []byte(password)); err != nil {
		return nil, errors.NewAuthError(errors.ReasonInvalidCredentials, nil)
	}

	p.touchLogin(ctx, u.ID)
	return p.openSession(ctx, models.Identity{ID: u.ID, Email: u.Email})
}

// AuthenticateFederated signs in the identity named by verified external
// claims. An existing password account with the same email is linked to the
// subject; otherwise a password-less account is created.
func (p *SQLProvider) AuthenticateFederated(ctx context.Context, claims FederatedClaims) (*Grant, error) {
	if claims.Subject == "" {
		return nil, errors.NewAuthError(errors.ReasonInvalidToken, fmt.Errorf("missing subject"))
	}
	email := validator.NormalizeEmail(claims.Email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, errors.NewAuthError(errors.ReasonInvalidEmail, err)
	}

	ctx, cancel := p.bound(ctx)
	defer cancel()

	u, err := p.userBy(ctx, "federated_subject", claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("federated sign-in: %w", err)
	}

	if u == nil {
		u, err = p.userBy(ctx, "email", email)
		if err != nil {
			return nil, fmt.Errorf("federated sign-in: %w", err)
		}
		if u != nil {
			if _, err := p.db.ExecContext(ctx, `UPDATE users SET federated_subject = ? WHERE id = ?`, claims.Subject, u.ID); err != nil {
				return nil, fmt.Errorf("federated sign-in: link account: %w", err)
			}
			log.Info().Str("user_id", u.ID).Msg("linked federated identity to existing account")
		}
	}

	if u == nil {
		u = &userRow{ID: "usr_" + uuid.NewString(), Email: email}
		if _, err := p.db.ExecContext(ctx, `INSERT INTO users (id, email, federated_subject, created_at) VALUES (?, ?, ?, ?)`,
			u.ID, email, claims.Subject, time.Now().Unix()); err != nil {
			return nil, fmt.Errorf("federated sign-in: %w", err)
		}
	}

	p.touchLogin(ctx, u.ID)
	return p.openSession(ctx, models.Identity{ID: u.ID, Email: u.Email})
}

func (p *SQLProvider) Deauthenticate(ctx context.Context, sessionID string) error {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	_, err := p.db.ExecContext(ctx, `UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`, time.Now().Unix(), sessionID)
	return err
}

func (p *SQLProvider) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	ctx, cancel := p.bound(ctx)
	defer cancel()

	var revokedAt sql.NullInt64
	err := p.db.QueryRowContext(ctx, `SELECT revoked_at FROM sessions WHERE id = ?`, sessionID).Scan(&revokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return !revokedAt.Valid, nil
}

func (p *SQLProvider) openSession(ctx context.Context, identity models.Identity) (*Grant, error) {
	sid := "ses_" + uuid.NewString()
	if _, err := p.db.ExecContext(ctx, `INSERT INTO sessions (id, user_id, created_at) VALUES (?, ?, ?)`, sid, identity.ID, time.Now().Unix()); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	return &Grant{Identity: identity, SessionID: sid}, nil
}

func (p *SQLProvider) touchLogin(ctx context.Context, userID string) {
	if _, err := p.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, time.Now().Unix(), userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to record last login")
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
