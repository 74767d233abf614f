// Package auth authenticates reviewers.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"intake/internal/db"
	"intake/internal/model"

	"github.com/gin-gonic/gin"
)

const identityKey = "reviewer_identity"

// ErrBadCredentials is returned for an unknown user, a wrong password or an inactive account.
var ErrBadCredentials = errors.New("invalid username or password")

// Identity is the authenticated reviewer attached to a request.
type Identity struct {
	ReviewerID uint
	Username   string
}

// ReviewerStore is the persistence auth needs. db.Service satisfies it.
type ReviewerStore interface {
	CreateReviewer(ctx context.Context, reviewer *model.Reviewer) error
	FindReviewerByUsername(ctx context.Context, username string) (*model.Reviewer, error)
}

// ReviewerLookup loads a reviewer by id. db.Service satisfies it.
type ReviewerLookup interface {
	GetReviewer(ctx context.Context, id uint) (*model.Reviewer, error)
}

// Authenticate checks a username and password.
func Authenticate(ctx context.Context, store ReviewerStore, username, password string) (*model.Reviewer, error) {
	reviewer, err := store.FindReviewerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !reviewer.Active || !CheckPassword(reviewer.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return reviewer, nil
}

// EnsureReviewer creates the reviewer account when it does not exist yet.
// It reports whether an account was created.
func EnsureReviewer(ctx context.Context, store ReviewerStore, username, password, email string) (bool, error) {
	_, err := store.FindReviewerByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return false, err
	}
	if password == "" {
		return false, fmt.Errorf("no password configured for reviewer %q", username)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	reviewer := &model.Reviewer{Username: username, PasswordHash: hash, Email: email, Active: true}
	if err := store.CreateReviewer(ctx, reviewer); err != nil {
		return false, err
	}
	return true, nil
}

// ReviewerMiddleware requires a valid Bearer token signed with secret whose
// reviewer still exists and is active.
func ReviewerMiddleware(secret string, reviewers ReviewerLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				token = strings.TrimSpace(parts[1])
			}
		}
		if token == "" {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication required"})
			return
		}

		claims, err := ParseToken(secret, token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, ErrExpiredToken) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": msg})
			return
		}

		reviewer, err := reviewers.GetReviewer(c.Request.Context(), claims.ReviewerID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "An internal error occurred"})
			return
		}
		if err != nil || !reviewer.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Account disabled"})
			return
		}

		c.Set(identityKey, Identity{ReviewerID: reviewer.ID, Username: reviewer.Username})
		c.Next()
	}
}

// IdentityFrom returns the reviewer set by ReviewerMiddleware.
func IdentityFrom(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
