package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainOperation "github.com/arkevo/collabcore/domains/operation"
	pkgError "github.com/arkevo/collabcore/pkg/error"
)

func ValidateStartOperation(ctx context.Context, request domainOperation.StartRequest) error {
	kind := domainOperation.Kind(request.Kind)

	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Kind, validation.Required, validation.By(func(any) error {
			if !kind.Valid() {
				return domainOperation.ErrUnknownKind
			}
			return nil
		})),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	switch kind {
	case domainOperation.KindUserReassign:
		err = validation.ValidateStructWithContext(ctx, &request,
			validation.Field(&request.TargetUserID, validation.Required),
		)
	case domainOperation.KindFileMove, domainOperation.KindFileCopy:
		err = validation.ValidateStructWithContext(ctx, &request,
			validation.Field(&request.Paths, validation.Required),
			validation.Field(&request.Destination, validation.Required),
		)
	default:
		err = validation.ValidateStructWithContext(ctx, &request,
			validation.Field(&request.Paths, validation.Required),
		)
	}
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
