package response

import (
	"errors"

	"ghg-workflow-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// StatusOf maps a domain error to its HTTP status.
func StatusOf(err error) int {
	switch domain.Kind(err) {
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindValidation, domain.KindCalculation, domain.KindInvalidState:
		return fiber.StatusBadRequest
	case domain.KindInvalidTransition:
		var ite *domain.InvalidTransitionError
		if errors.As(err, &ite) && ite.Denial == domain.DenialRoleNotPermitted {
			return fiber.StatusForbidden
		}
		return fiber.StatusBadRequest
	case domain.KindPermission:
		return fiber.StatusForbidden
	case domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindPersistence:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// DetailsOf returns the structured fields of a domain error for the error body.
func DetailsOf(err error) fiber.Map {
	var (
		ve  *domain.ValidationError
		ise *domain.InvalidStateError
		ite *domain.InvalidTransitionError
		pe  *domain.PermissionError
		nf  *domain.NotFoundError
		ce  *domain.ConflictError
		cae *domain.CalculationError
	)
	switch {
	case errors.As(err, &ve):
		d := fiber.Map{"kind": domain.KindValidation}
		if ve.Field != "" {
			d["field"] = ve.Field
		}
		if ve.Rule != "" {
			d["rule"] = ve.Rule
		}
		if len(ve.Issues) > 0 {
			d["issues"] = ve.Issues
		}
		return d
	case errors.As(err, &ise):
		return fiber.Map{"kind": domain.KindInvalidState, "operation": ise.Operation, "status": ise.Status, "allowed": ise.Allowed}
	case errors.As(err, &ite):
		return fiber.Map{
			"kind":           domain.KindInvalidTransition,
			"from":           ite.From,
			"to":             ite.To,
			"role":           ite.Role,
			"denial":         ite.Denial,
			"required_roles": ite.RequiredRoles,
		}
	case errors.As(err, &pe):
		return fiber.Map{"kind": domain.KindPermission, "permission": pe.Permission, "role": pe.Role}
	case errors.As(err, &nf):
		return fiber.Map{"kind": domain.KindNotFound, "entity": nf.Entity, "id": nf.ID}
	case errors.As(err, &ce):
		return fiber.Map{"kind": domain.KindConflict, "entity": ce.Entity, "id": ce.ID}
	case errors.As(err, &cae):
		return fiber.Map{"kind": domain.KindCalculation, "field": cae.Field}
	}
	return fiber.Map{"kind": domain.Kind(err)}
}

// FromError renders err in the standard error format. Storage faults and unknown
// errors are logged with their cause and rendered without it.
func FromError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return Error(c, fe.Message, fe.Code, nil)
	}
	status := StatusOf(err)
	message := err.Error()
	switch domain.Kind(err) {
	case domain.KindPersistence:
		var pse *domain.PersistenceError
		errors.As(err, &pse)
		log.Error().Err(pse.Err).Str("op", pse.Op).Str("path", c.Path()).Msg("storage failure")
	case domain.KindUnknown:
		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		message = "Internal Server Error"
	}
	return Error(c, message, status, DetailsOf(err))
}
