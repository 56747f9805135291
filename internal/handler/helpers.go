package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"moneycase/internal/apierror"
	"moneycase/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so tags like min=0 work without
	// panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report fields by their json/form name rather than the Go field name.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}

// bindAndValidate binds the JSON body and runs validator tags.
// Returns false after writing the error response; the caller returns immediately.
func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeBadRequest, "invalid JSON: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

// bindQueryAndValidate is bindAndValidate for query strings.
func bindQueryAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeBadRequest, "invalid query: "+err.Error()))
		return false
	}
	return runValidation(c, req)
}

func runValidation(c *gin.Context, req any) bool {
	err := validate.Struct(req)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.CodeBadRequest, err.Error()))
		return false
	}
	fields := make([]apierror.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		fields = append(fields, apierror.FieldError{Field: fe.Field(), Message: msg})
	}
	c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
	return false
}

// branchParam parses :branch_id, writing a 422 when it is not a positive integer.
func branchParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("branch_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation([]apierror.FieldError{
			{Field: "branch_id", Message: "must be a positive integer"},
		}))
		return 0, false
	}
	return id, true
}

// sessionParam parses :id as a uuid.
func sessionParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation([]apierror.FieldError{
			{Field: "id", Message: "must be a uuid"},
		}))
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps service errors onto HTTP. Anything unrecognised is attached to
// the context and rendered as a 500 by middleware.ErrorHandler.
func writeError(c *gin.Context, err error) {
	var (
		ve *service.ValidationError
		pe *service.PreconditionError
	)
	switch {
	case errors.As(err, &ve):
		fields := make([]apierror.FieldError, 0, len(ve.Violations))
		for _, v := range ve.Violations {
			fields = append(fields, apierror.FieldError{Field: v.Field, Message: v.Message})
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))

	case errors.As(err, &pe):
		body := apierror.New(preconditionCode(pe), pe.Error())
		if pe.SessionID != uuid.Nil {
			body.WithSession(pe.SessionID.String())
		}
		c.JSON(http.StatusConflict, body)

	case errors.Is(err, service.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, apierror.New(apierror.CodeConcurrentUpdate, err.Error()))

	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrBranchNotFound):
		c.JSON(http.StatusNotFound, apierror.New(apierror.CodeNotFound, err.Error()))

	case errors.Is(err, service.ErrSalesUnavailable):
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, apierror.New(apierror.CodeUnavailable, service.ErrSalesUnavailable.Error()))

	default:
		_ = c.Error(err)
	}
}

func preconditionCode(pe *service.PreconditionError) string {
	switch {
	case errors.Is(pe, service.ErrSessionAlreadyOpen):
		return apierror.CodeSessionAlreadyOpen
	case errors.Is(pe, service.ErrNoActiveSession):
		return apierror.CodeNoActiveSession
	case errors.Is(pe, service.ErrAlreadyClosed):
		return apierror.CodeAlreadyClosed
	case errors.Is(pe, service.ErrSessionStillOpen):
		return apierror.CodeSessionStillOpen
	default:
		return apierror.CodeBadRequest
	}
}
