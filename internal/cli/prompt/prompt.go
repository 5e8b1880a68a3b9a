// Package prompt provides the interactive terminal prompts the admin CLI
// uses for destructive or secret-bearing operations (password reset
// confirmation, masked password entry).
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return ErrAborted
	}
	return err
}

// PasswordWithConfirmation prompts for a new password twice and fails if
// the two entries don't match.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	first := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}
	password, err := first.Run()
	if err != nil {
		return "", wrapError(err)
	}

	second := promptui.Prompt{Label: confirmLabel, Mask: '*'}
	confirm, err := second.Run()
	if err != nil {
		return "", wrapError(err)
	}

	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// Confirm prompts for yes/no confirmation, defaulting to no.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{
		Label:     fmt.Sprintf("%s [y/N]", label),
		IsConfirm: true,
	}
	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, wrapError(err)
	}
	return strings.EqualFold(result, "y") || strings.EqualFold(result, "yes"), nil
}
