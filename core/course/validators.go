package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/coffee3333/erudite/core"
)

var (
	courseLevelTag  = "courselevel"
	courseLevelText = "must be one of: beginner, intermediate, advanced"

	courseStatusTag  = "coursestatus"
	courseStatusText = "must be one of: draft, published, archived"

	difficultyTag  = "difficulty"
	difficultyText = "must be one of: easy, medium, hard"

	answerInOptionsTag  = "answer_in_options"
	answerInOptionsText = "correct answer must be one of the provided options"
)

// InitValidators registers this package's custom validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(courseLevelTag, oneOfValidation(Levels))
	core.RegisterCustomTranslation(validate, translator, courseLevelTag, courseLevelText)

	_ = validate.RegisterValidation(courseStatusTag, oneOfValidation(Statuses))
	core.RegisterCustomTranslation(validate, translator, courseStatusTag, courseStatusText)

	_ = validate.RegisterValidation(difficultyTag, oneOfValidation(Difficulties))
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)

	validate.RegisterStructValidation(challengeStructValidation, NewChallenge{})
	core.RegisterCustomTranslation(validate, translator, answerInOptionsTag, answerInOptionsText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

// challengeStructValidation checks that the correct answer is one of the
// options whenever options are provided.
func challengeStructValidation(sl validator.StructLevel) {
	nc, ok := sl.Current().Interface().(NewChallenge)
	if !ok || len(nc.Options) == 0 {
		return
	}
	for _, opt := range nc.Options {
		if opt == nc.CorrectAnswer {
			return
		}
	}
	sl.ReportError(nc.CorrectAnswer, "correct_answer", "CorrectAnswer", answerInOptionsTag, "")
}
