package aggregates

import (
	"stackit/domain/core/entities"
	"stackit/domain/core/valueobjects"
)

// SampleQuestionID is the id of the built-in fallback question
const SampleQuestionID = "sample"

const (
	sampleTitle = "How to join 2 columns in a data set to make a separate column in SQL"
	sampleBody  = "I do not know the code for it as I am a beginner. As an example, what I need to do is like there is a column 1 containing First name, and column 2 consists of last name. I want a column to combine."
)

// SampleQuestion returns a fresh copy of the question shown when loading fails
func SampleQuestion() *Question {
	first, _ := entities.ReconstructAnswer(
		valueobjects.NumericAnswerID("1"),
		"The `||` Operator.\nThe `+` Operator.\nThe `CONCAT` Function.",
		1, false,
	)
	second, _ := entities.ReconstructAnswer(
		valueobjects.NumericAnswerID("2"),
		"Use `CONCAT(FirstName, ' ', LastName)`.",
		0, false,
	)
	return NewQuestion(valueobjects.MustQuestionID(SampleQuestionID), sampleTitle, sampleBody,
		[]*entities.Answer{first, second})
}
