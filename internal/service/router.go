package service

import (
	"context"
	"log"

	"rechargehub/internal/model"

	"github.com/shopspring/decimal"
)

// ProviderRouter picks the upstream API for an order. Enabled routing
// strategies are tried in priority order; the first rule that matches wins
// and the provider's default API is the fallback when no rule fires.
type ProviderRouter struct {
	routes RouteReader
}

func NewProviderRouter(routes RouteReader) *ProviderRouter {
	return &ProviderRouter{routes: routes}
}

// SelectApi resolves the API id for one order. Returns ErrNoApiAvailable
// when neither a routing rule nor the provider default yields an API.
func (r *ProviderRouter) SelectApi(ctx context.Context, userID, providerID, stateID int64, amount decimal.Decimal) (int64, error) {
	settings, err := r.routes.GetRouteSettings(ctx)
	if err != nil {
		return 0, err
	}

	for _, setting := range settings {
		apiID, err := r.matchRoute(ctx, setting.RouteCode, userID, providerID, stateID, amount)
		if err != nil {
			return 0, err
		}
		if apiID > 0 {
			log.Printf("[Router] order routed by %s to api %d (provider=%d user=%d)", setting.RouteCode, apiID, providerID, userID)
			return apiID, nil
		}
	}

	provider, err := r.routes.GetProvider(ctx, providerID)
	if err != nil {
		return 0, err
	}
	if provider.ApiID <= 0 {
		return 0, ErrNoApiAvailable
	}
	return provider.ApiID, nil
}

func (r *ProviderRouter) matchRoute(ctx context.Context, routeCode string, userID, providerID, stateID int64, amount decimal.Decimal) (int64, error) {
	switch routeCode {
	case model.RouteCodeAmountWise:
		sw, err := r.routes.GetAmountSwitch(ctx, providerID)
		if err != nil {
			return 0, err
		}
		if sw != nil && sw.Matches(amount) {
			return sw.ApiID, nil
		}
	case model.RouteCodeStateWise:
		sw, err := r.routes.GetStateSwitch(ctx, providerID, stateID)
		if err != nil {
			return 0, err
		}
		if sw != nil && sw.Matches(amount) {
			return sw.ApiID, nil
		}
	case model.RouteCodeUserWise:
		sw, err := r.routes.GetUserSwitch(ctx, providerID, userID, stateID)
		if err != nil {
			return 0, err
		}
		if sw != nil && sw.Matches(amount) {
			return sw.ApiID, nil
		}
	default:
		log.Printf("[Router] unknown route code %q skipped", routeCode)
	}
	return 0, nil
}
