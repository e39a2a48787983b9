package service

import (
	"context"
	"fmt"

	"vidshare/internal/domain"
	apperrors "vidshare/internal/errors"
	"vidshare/internal/pipeline"
	"vidshare/internal/repository"
)

// Authorize reports whether principal may perform action on resource. Every
// action is owner-only: the resource's owner_id must equal the principal id.
func Authorize(resource domain.Document, principal *domain.Principal, action domain.Action) bool {
	if principal == nil || principal.ID == "" || resource == nil {
		return false
	}
	owner := resource.OwnerID()
	return owner != "" && owner == principal.ID
}

func requirePrincipal(principal *domain.Principal) error {
	if principal == nil || principal.ID == "" {
		return apperrors.Unauthenticated("authentication required")
	}
	return nil
}

// ownedResource loads the resource a mutation targets, in this order:
// principal present, id well formed, resource exists, principal owns it.
// A missing resource is reported before an ownership failure.
func ownedResource(
	ctx context.Context,
	store repository.Store,
	principal *domain.Principal,
	coll domain.Collection,
	param, id string,
	action domain.Action,
) (domain.Document, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := pipeline.ValidateID(param, id); err != nil {
		return nil, err
	}

	doc, err := store.FindByID(ctx, coll, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperrors.NotFoundf("%s not found", coll.Singular())
	}
	if !Authorize(doc, principal, action) {
		return nil, apperrors.Forbidden(fmt.Sprintf("only the owner can %s this %s", actionPhrase(action), coll.Singular()))
	}
	return doc, nil
}

func actionPhrase(a domain.Action) string {
	switch a {
	case domain.ActionAddChild:
		return "add videos to"
	case domain.ActionRemoveChild:
		return "remove videos from"
	}
	return string(a)
}
