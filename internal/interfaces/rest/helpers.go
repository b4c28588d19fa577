package rest

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/constants"
	"github.com/nexuscrm/salescrm/pkg/errors"
)

// GetUserFromContext extracts the authenticated user from gin.Context
func GetUserFromContext(c *gin.Context) *models.UserSession {
	v, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil
	}
	user, _ := v.(*models.UserSession)
	return user
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	errorCode := errors.GetErrorCode(err)
	message := err.Error()

	if code >= 500 {
		zap.L().Error("request failed",
			zap.Int("status", code),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		if errorCode == "UNKNOWN_ERROR" {
			errorCode = "INTERNAL_ERROR"
		}
	}

	c.JSON(code, gin.H{
		constants.ResponseError: message,
		"message":               message,
		"code":                  errorCode,
		"data":                  nil,
	})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleCreateEnvelope binds the body into in, runs the create action and
// returns { [key]: created } with 201.
func HandleCreateEnvelope(c *gin.Context, key string, in interface{}, action func() (interface{}, error)) {
	if !BindJSON(c, in) {
		return
	}
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{key: result})
}

// HandleUpdateEnvelope binds the body into in, runs the update action and
// returns { [key]: updated }.
func HandleUpdateEnvelope(c *gin.Context, key string, in interface{}, action func() (interface{}, error)) {
	if !BindJSON(c, in) {
		return
	}
	HandleGetEnvelope(c, key, action)
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { "message": successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": successMsg})
}

// listOptions reads the common list query parameters.
func listOptions(c *gin.Context) (models.ListOptions, error) {
	opts := models.ListOptions{
		Filter:    c.Query(constants.ParamFilter),
		Search:    strings.TrimSpace(c.Query(constants.ParamSearch)),
		OrderBy:   c.Query(constants.ParamOrderBy),
		OrderDir:  c.Query(constants.ParamOrderDir),
		Status:    c.Query(constants.ParamStatus),
		Stage:     c.Query("stage"),
		Type:      c.Query("type"),
		CompanyID: c.Query(constants.FieldCompanyID),
		ContactID: c.Query(constants.FieldContactID),
		DealID:    c.Query(constants.FieldDealID),
	}
	var err error
	if opts.Limit, err = intParam(c, constants.ParamLimit); err != nil {
		return opts, err
	}
	if opts.Offset, err = intParam(c, constants.ParamOffset); err != nil {
		return opts, err
	}
	return opts, nil
}

func intParam(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(name, "must be a non-negative integer")
	}
	return n, nil
}

// handleList parses list options and returns { [key]: rows }.
func handleList(c *gin.Context, key string, list func(models.ListOptions) (interface{}, error)) {
	opts, err := listOptions(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	HandleGetEnvelope(c, key, func() (interface{}, error) { return list(opts) })
}
