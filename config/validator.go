// Copyright 2019 IBM Corp.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var defaultValidator = mustValidator()

type structValidator struct {
	v *validator.Validate
	t ut.Translator
}

func mustValidator() *structValidator {
	enLoc := en.New()
	uni := ut.New(enLoc, enLoc)
	translate, _ := uni.GetTranslator("en")
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := entranslations.RegisterDefaultTranslations(validate, translate); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("koanf")
		if len(name) == 0 {
			name = fld.Name
		}

		return "'" + strings.SplitN(name, ",", 2)[0] + "'" // nolint: mnd
	})

	return &structValidator{v: validate, t: translate}
}

// ValidateStruct checks the validate tags of s and reports every violation
// in a single ErrConfiguration.
func ValidateStruct(s any) error {
	err := defaultValidator.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(defaultValidator.t))
	}

	return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(msgs, ", "))
}
