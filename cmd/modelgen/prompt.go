package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// errAborted is returned when the user interrupts a prompt.
var errAborted = errors.New("modelgen: prompt aborted")

// Prompter abstracts the interactive terminal so the command can be driven
// in tests.
type Prompter interface {
	SelectModels(ctx context.Context, names []string) ([]string, error)
	ConfirmOverwrite(ctx context.Context, path string) (bool, error)
}

type surveyPrompter struct{}

func (surveyPrompter) SelectModels(ctx context.Context, names []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []string
	prompt := &survey.MultiSelect{
		Message:  "Model types to generate",
		Options:  names,
		Default:  names,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &out, survey.WithValidator(survey.MinItems(1))); err != nil {
		return nil, translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) ConfirmOverwrite(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("%s exists. Overwrite?", path),
		Default: true,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}
