package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stuorg/portal/internal/pkg/jwthelper"
)

const (
	CtxKeyUserID = "userID"
	CtxKeyRole   = "userRole"
)

type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
	}
}

func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, parts[1])
		if err != nil {
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if claims.UserAgent != ctx.Request.UserAgent() {
			// Token was minted for a different client.
			ctx.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		ctx.Set(CtxKeyUserID, claims.UserID)
		ctx.Set(CtxKeyRole, claims.Role)
		ctx.Next()
	}
}

// RequireRole guards operator and admin routes. VerifyJWT must run
// first so the role claim is present.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role := ctx.GetString(CtxKeyRole)
		for _, allowed := range roles {
			if role == allowed {
				ctx.Next()
				return
			}
		}
		ctx.AbortWithStatus(http.StatusForbidden)
	}
}
