package middleware

import (
	"context"
	"fmt"

	id "sproutmarket/pkg/domain"
	"sproutmarket/pkg/requestcontext"
)

// contextWithClaims parses the raw string claims into typed IDs and attaches
// them to the context. A farm ID is only required for farm actors.
func contextWithClaims(ctx context.Context, claims *Claims) (context.Context, error) {
	actorID, err := id.ParseActorID(claims.ActorID)
	if err != nil {
		return nil, fmt.Errorf("parse actor id: %w", err)
	}

	role := id.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}

	var farmID id.FarmID
	if claims.FarmID != "" {
		farmID, err = id.ParseFarmID(claims.FarmID)
		if err != nil {
			return nil, fmt.Errorf("parse farm id: %w", err)
		}
	}
	if role == id.RoleFarmer && farmID.IsNil() {
		return nil, fmt.Errorf("farm actor without farm id")
	}

	return requestcontext.WithActor(ctx, actorID, role, farmID), nil
}
