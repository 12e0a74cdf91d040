// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/batch-settlement/internal/i18n"
	"github.com/javajoker/batch-settlement/internal/services"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type errorMapping struct {
	status int
	key    string
}

var domainErrorMappings = map[services.ErrorKind]errorMapping{
	services.KindInvalidStateTransition: {http.StatusConflict, i18n.KeyErrorInvalidTransition},
	services.KindConcurrentUpdate:       {http.StatusConflict, i18n.KeyErrorConcurrentUpdate},
	services.KindInsufficientStock:      {http.StatusUnprocessableEntity, i18n.KeyErrorInsufficientStock},
	services.KindInvalidGiftQuota:       {http.StatusUnprocessableEntity, i18n.KeyErrorGiftQuotaExceeded},
	services.KindInvalidPromoQuantity:   {http.StatusUnprocessableEntity, i18n.KeyErrorInvalidPromo},
	services.KindMissingPrice:           {http.StatusUnprocessableEntity, i18n.KeyErrorMissingPrice},
	services.KindAmountMismatch:         {http.StatusUnprocessableEntity, i18n.KeyErrorAmountMismatch},
	services.KindRecruiterChain:         {http.StatusUnprocessableEntity, i18n.KeyErrorRecruiterChain},
}

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)

	var de *services.DomainError
	if !errors.As(err, &de) {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	details := gin.H{"reason": de.Message}
	for k, v := range de.Details {
		details[k] = v
	}
	if de.CurrentState != "" {
		details["current_state"] = de.CurrentState
	}

	switch de.Kind {
	case services.KindNotFound:
		resource, _ := de.Details["resource"].(string)
		utils.NotFoundResponse(c, resource, details)
	case services.KindValidation:
		utils.BadRequestResponse(c, de.Message, details)
	default:
		mapping, ok := domainErrorMappings[de.Kind]
		if !ok {
			utils.InternalErrorResponse(c, "")
			return
		}
		message := i18n.T(lang, mapping.key)
		if mapping.status == http.StatusConflict {
			utils.ConflictResponse(c, string(de.Kind), message, details)
		} else {
			utils.UnprocessableResponse(c, string(de.Kind), message, details)
		}
	}
}

// bindJSON binds and validates the body, writing the error response itself.
func bindJSON(c *gin.Context, req interface{}) bool {
	lang := utils.GetLangFromContext(c)
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return false
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return false
	}
	return true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return nil, false
	}
	return &id, true
}

func operatorID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := utils.GetOperatorIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}
	return id, true
}
