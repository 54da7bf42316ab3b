package middleware

import (
	"log"
	"strings"

	"sewain/internal/models"
	"sewain/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
// Claims are decoded into Locals for the role and verification gates below.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		tokenString := parts[1]

		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			log.Printf("JWT validation failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		// Store claims in Fiber context for subsequent handlers
		c.Locals("user_id", claims["user_id"])
		c.Locals("role", claims["role"])
		c.Locals("verified", claims["verified"])

		// Continue to the next handler
		return c.Next()
	}
}

// RequireVerified rejects callers whose account an admin has not verified
// yet. It must run after AuthRequired.
func RequireVerified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if verified, ok := c.Locals("verified").(bool); !ok || !verified {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Account is awaiting verification by an administrator",
			})
		}
		return c.Next()
	}
}

// RequireRole rejects callers who do not hold the given role. It must run
// after AuthRequired.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actual, _ := c.Locals("role").(string)
		if models.Role(actual) != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": "Insufficient role for this operation",
			})
		}
		return c.Next()
	}
}

// Actor builds the service-level auth context from the request claims.
func Actor(c *fiber.Ctx) services.AuthContext {
	userID, _ := c.Locals("user_id").(string)
	role, _ := c.Locals("role").(string)
	verified, _ := c.Locals("verified").(bool)
	return services.AuthContext{
		UserID:   userID,
		Role:     models.Role(role),
		Verified: verified,
	}
}
