package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TagName 与 gin 绑定时使用的 tag 一致，同一套规则在 handler 和 service 都生效
const TagName = "binding"

const notBlankTag = "notblank"

// New 创建带自定义规则的 validator
func New() *validator.Validate {
	v := validator.New()
	v.SetTagName(TagName)
	Register(v)
	return v
}

// Register 用 json 字段名报告错误，并注册自定义规则
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(notBlankTag, notBlank)
}

var ginOnce sync.Once

// RegisterGin 把自定义规则注册到 gin 的默认 validator
func RegisterGin() {
	ginOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			Register(v)
		}
	})
}

// Describe 取第一个字段错误，返回字段名和说明
func Describe(err error) (field, message string, ok bool) {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "", "", false
	}
	fe := errs[0]
	return fe.Field(), messageFor(fe), true
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "must not be empty"
	case "gte":
		if fe.Param() == "0" {
			return "must not be negative"
		}
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return fmt.Sprintf("unknown value %v, expected one of: %s", fe.Value(), fe.Param())
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}
