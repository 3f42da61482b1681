package access

import (
	"stockroom/internal/apperror"
	"stockroom/internal/domain"
)

// Checker decides whether an actor may modify a product
type Checker interface {
	CanMutate(actor *domain.Actor, product *domain.Product) bool
}

// OwnerOrStaff allows the product owner and any privileged role
type OwnerOrStaff struct{}

func (OwnerOrStaff) CanMutate(actor *domain.Actor, product *domain.Product) bool {
	return CanMutate(actor, product)
}

// CanMutate is true iff actor owns product or holds a privileged role
func CanMutate(actor *domain.Actor, product *domain.Product) bool {
	if actor == nil || product == nil {
		return false
	}
	return actor.ID == product.OwnerID || actor.IsPrivileged()
}

// Require turns a failed check into an error. Anonymous actors get
// unauthenticated, everyone else permission denied.
func Require(checker Checker, actor *domain.Actor, product *domain.Product, action string) error {
	if actor == nil {
		return apperror.New(apperror.KindUnauthenticated, "authentication required")
	}
	if !checker.CanMutate(actor, product) {
		return apperror.New(apperror.KindPermissionDenied, "You don't have permission to "+action+" this product.")
	}
	return nil
}
