package config

import (
	"fmt"
	"reflect"
	"strings"

	apperrors "github.com/darkkaiser/pops-connect/internal/pkg/errors"
	"github.com/darkkaiser/pops-connect/internal/suite"
	"github.com/go-playground/validator/v10"
)

// newValidator 커스텀 규칙이 등록된 Validator를 생성합니다.
func newValidator() *validator.Validate {
	v := validator.New()

	// 에러 메시지에 Go 필드명 대신 설정 파일의 키 이름이 나오도록 합니다.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("app_id", validateAppID); err != nil {
		panic(fmt.Sprintf("'app_id' 검증 규칙 등록에 실패했습니다: %v", err))
	}

	return v
}

// validateAppID 정의된 애플리케이션 식별자인지 검사합니다.
func validateAppID(fl validator.FieldLevel) bool {
	return suite.ID(fl.Field().String()).Valid()
}

// checkStruct 구조체를 검증하고 첫 번째 실패를 사람이 읽을 수 있는 메시지로 바꿉니다.
func checkStruct(v *validator.Validate, s any, contextName string) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Wrapf(err, apperrors.InvalidInput, "%s 검증에 실패했습니다", contextName)
	}

	fe := validationErrors[0]
	switch fe.Tag() {
	case "app_id":
		return apperrors.Newf(apperrors.InvalidInput, "%s: 알 수 없는 애플리케이션 식별자입니다: '%v' (사용 가능: %v)", contextName, fe.Value(), suite.All())
	case "oneof":
		return apperrors.Newf(apperrors.InvalidInput, "%s: %s 값은 [%s] 중 하나여야 합니다: '%v'", contextName, fe.Field(), fe.Param(), fe.Value())
	case "gt":
		return apperrors.Newf(apperrors.InvalidInput, "%s: %s 값은 %s보다 커야 합니다: '%v'", contextName, fe.Field(), fe.Param(), fe.Value())
	case "unique":
		return apperrors.Newf(apperrors.InvalidInput, "%s: %s 목록에 중복된 항목이 있습니다", contextName, fe.Field())
	case "required":
		return apperrors.Newf(apperrors.InvalidInput, "%s: %s 값은 필수입니다", contextName, fe.Field())
	}

	return apperrors.Newf(apperrors.InvalidInput, "%s: %s 설정이 올바르지 않습니다 (조건: %s, 값: '%v')", contextName, fe.Field(), fe.Tag(), fe.Value())
}

// checkUniqueField 슬라이스 요소의 특정 필드 값이 서로 겹치지 않는지 검사합니다.
func checkUniqueField(v *validator.Validate, data any, fieldName, contextName string) error {
	if err := v.Var(data, "unique="+fieldName); err != nil {
		return apperrors.Newf(apperrors.InvalidInput, "중복된 %s 항목이 있습니다 (필드: %s)", contextName, fieldName)
	}
	return nil
}
