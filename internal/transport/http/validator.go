package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	trans         ut.Translator
	validatorOnce sync.Once
)

// SetupValidator registers English translations on gin's binding engine and
// reports fields by their JSON names.
func SetupValidator() {
	validatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)
	})
}

// translateErrors turns validator errors into field -> message.
func translateErrors(ve govalidator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		if trans != nil {
			fields[fe.Field()] = fe.Translate(trans)
		} else {
			fields[fe.Field()] = fe.Error()
		}
	}
	return fields
}

// bind decodes and validates the JSON body into dst, answering 400 itself
// when that fails. A body that is not decodable JSON is INVALID_PAYLOAD, a
// decoded body failing its rules is VALIDATION_ERROR.
func bind(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		fail(c, http.StatusBadRequest, ErrValidation, "", translateErrors(ve))
		return false
	}
	fail(c, http.StatusBadRequest, ErrInvalidPayload, "", map[string]string{"detail": err.Error()})
	return false
}
