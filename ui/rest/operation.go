package rest

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	domainOperation "github.com/arkevo/collabcore/domains/operation"
	pkgError "github.com/arkevo/collabcore/pkg/error"
	"github.com/arkevo/collabcore/pkg/utils"
	"github.com/arkevo/collabcore/validations"
)

type Operation struct {
	FileOps  domainOperation.IFileOperationsUsecase
	Reassign domainOperation.IReassignUsecase
}

func InitRestOperation(app fiber.Router, fileOps domainOperation.IFileOperationsUsecase, reassign domainOperation.IReassignUsecase) Operation {
	rest := Operation{FileOps: fileOps, Reassign: reassign}
	app.Post("/operations", rest.StartOperation)
	app.Get("/operations", rest.GetOperations)
	app.Get("/operations/:id", rest.GetOperation)
	app.Delete("/operations", rest.CancelOperations)

	return rest
}

// ownerFromRequest reads the tenant/principal identity the surrounding
// system injects as headers. Both are opaque here.
func ownerFromRequest(c *fiber.Ctx) domainOperation.Owner {
	owner := domainOperation.Owner{
		TenantID: c.Get("X-Tenant-ID"),
		UserID:   c.Get("X-User-ID"),
	}
	if owner.TenantID == "" || owner.UserID == "" {
		panic(pkgError.ValidationError("X-Tenant-ID and X-User-ID headers are required"))
	}
	return owner
}

func (handler *Operation) StartOperation(c *fiber.Ctx) error {
	owner := ownerFromRequest(c)

	var request domainOperation.StartRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	err = validations.ValidateStartOperation(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	var result domainOperation.JobResult
	if domainOperation.Kind(request.Kind) == domainOperation.KindUserReassign {
		result, err = handler.Reassign.Start(c.UserContext(), owner, request.TargetUserID)
	} else {
		result, err = handler.FileOps.Start(c.UserContext(), owner, request)
	}
	utils.PanicIfNeeded(translateOperationError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Operation accepted",
		Results: result,
	})
}

func (handler *Operation) GetOperations(c *fiber.Ctx) error {
	owner := ownerFromRequest(c)

	results := handler.FileOps.GetStatus(c.UserContext(), owner)
	if r, ok := handler.Reassign.GetStatus(c.UserContext(), owner); ok {
		results = append(results, r)
	}
	if results == nil {
		results = []domainOperation.JobResult{}
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Operations retrieved",
		Results: results,
	})
}

// GetOperation returns one job by id, scoped to the calling owner.
func (handler *Operation) GetOperation(c *fiber.Ctx) error {
	owner := ownerFromRequest(c)
	id := c.Params("id")

	for _, r := range handler.FileOps.GetStatus(c.UserContext(), owner) {
		if r.ID == id {
			return c.JSON(utils.ResponseData{
				Status:  200,
				Code:    "SUCCESS",
				Message: "Operation retrieved",
				Results: r,
			})
		}
	}
	if r, ok := handler.Reassign.GetStatus(c.UserContext(), owner); ok && r.ID == id {
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: "Operation retrieved",
			Results: r,
		})
	}

	panic(pkgError.NotFoundError("operation " + id + " not found"))
}

func (handler *Operation) CancelOperations(c *fiber.Ctx) error {
	owner := ownerFromRequest(c)

	handler.FileOps.Terminate(c.UserContext(), owner)
	handler.Reassign.Terminate(c.UserContext(), owner)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cancellation requested",
	})
}

// translateOperationError maps usecase sentinels onto typed HTTP errors so
// the recovery middleware can answer with the right status.
func translateOperationError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domainOperation.ErrDownloadInProgress):
		return pkgError.ConflictError(err.Error())
	case errors.Is(err, domainOperation.ErrUnknownKind):
		return pkgError.ValidationError(err.Error())
	default:
		return err
	}
}
