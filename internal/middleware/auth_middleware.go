package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"go-leavehub/internal/shared/apperror"
	"go-leavehub/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the identity fields every authenticated request carries. The
// identity service issues the tokens; this process only validates them.
type Claims struct {
	UserID     string
	EmployeeID string
	CompanyID  string
	Role       string
}

var (
	ErrTokenInvalid = apperror.New(apperror.CodeUnauthorized, "invalid token", http.StatusUnauthorized)
	ErrTokenExpired = apperror.New(apperror.CodeUnauthorized, "token has expired", http.StatusUnauthorized)
)

// ParseBearerToken validates an HMAC-signed bearer credential and extracts
// the identity claims. Used by both the HTTP middleware and the websocket
// connect path, where the credential is checked at upgrade time.
func ParseBearerToken(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if !token.Valid {
		return Claims{}, ErrTokenInvalid
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}

	claims := Claims{}
	if claims.UserID, ok = mapClaims["user_id"].(string); !ok || claims.UserID == "" {
		return Claims{}, ErrTokenInvalid
	}
	if claims.EmployeeID, ok = mapClaims["employee_id"].(string); !ok || claims.EmployeeID == "" {
		return Claims{}, ErrTokenInvalid
	}
	if claims.CompanyID, ok = mapClaims["company_id"].(string); !ok || claims.CompanyID == "" {
		return Claims{}, ErrTokenInvalid
	}
	claims.Role, _ = mapClaims["role"].(string)

	return claims, nil
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			tokenString = ""
		}

		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			response.Error(c, http.StatusUnauthorized, apperror.CodeUnauthorized, "Token not found", nil)
			c.Abort()
			return
		}

		claims, err := ParseBearerToken(tokenString)
		if err != nil {
			httpErr := apperror.ToHTTP(err)
			response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, nil)
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_id_validated", claims.UserID)
		c.Set("employee_id", claims.EmployeeID)
		c.Set("company_id", claims.CompanyID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
