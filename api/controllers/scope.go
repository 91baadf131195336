package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/agrilinkhq/mandi-backend/api/middleware"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
)

// shopScope resolves the authenticated shop from the request context.
// Every settlement endpoint is shop-scoped; a token without a shop claim
// cannot move money.
func shopScope(r *http.Request) (uuid.UUID, error) {
	raw := middleware.ShopIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context required")
	}
	shopID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "invalid shop context")
	}
	return shopID, nil
}
