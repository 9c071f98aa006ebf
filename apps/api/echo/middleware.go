package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/coffee3333/erudite/core"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func teacherMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsTeacher || claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func verifiedEmailMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.EmailVerified || claims.IsAdmin {
				return next(ctx)
			}
			return errEmailNotVerified
		}
	}
}

// ownerOrAdminMiddleware loads the object referred to by the "slug" path param
// and lets through its owner or an admin. The loaded object is stored in the
// request context under contextObjectKey for the handler to reuse.
func ownerOrAdminMiddleware(getObject func(slug string) (core.Owned, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			obj, err := getObject(ctx.Param("slug"))
			if err != nil {
				if isNotFoundErr(err) {
					return errHttpNotFound
				}
				return errors.Wrap(err, "getting object")
			}

			if claims.IsAdmin || core.IsOwner(obj, claims.Subject) {
				ctx.Set(contextObjectKey, obj)
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
