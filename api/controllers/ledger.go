package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrilinkhq/mandi-backend/api/responses"
	"github.com/agrilinkhq/mandi-backend/api/validators"
	"github.com/agrilinkhq/mandi-backend/internal/ledger"
	pkgerrors "github.com/agrilinkhq/mandi-backend/pkg/errors"
	"github.com/agrilinkhq/mandi-backend/pkg/logger"
)

// LedgerList pages through a user's ledger entries, newest first.
func LedgerList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		shopID, err := shopScope(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		userID, err := validators.ParsePathUUID(chi.URLParam(r, "userID"), "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entries, next, err := svc.EntriesFor(ctx, userID, shopID, params)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		resp := listResponse[ledgerEntryResponse]{
			Items:      make([]ledgerEntryResponse, 0, len(entries)),
			NextCursor: next,
		}
		for i := range entries {
			resp.Items = append(resp.Items, toLedgerEntryResponse(&entries[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}
