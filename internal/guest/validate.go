// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package guest

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("guest: invalid input")

// MinPhoneDigits is the shortest accepted normalized phone number.
const MinPhoneDigits = 7

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidationError lists every problem found in an Input.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "guest: " + strings.Join(e.Problems, " ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Problems extracts the problem list from err, or nil.
func Problems(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Problems
	}
	return nil
}

// Validate checks a normalized Input.
func Validate(in Input) error {
	problems := profileProblems(in)
	if len(in.Phone) < MinPhoneDigits {
		problems = append(problems, "Valid phone number is required.")
	}
	return asError(problems)
}

func profileProblems(in Input) []string {
	var problems []string
	if utf8.RuneCountInString(in.Name) < 2 {
		problems = append(problems, "Name is required (min 2 characters).")
	}
	if !emailPattern.MatchString(in.Email) {
		problems = append(problems, "Valid email is required.")
	}
	if utf8.RuneCountInString(in.Institution) < 2 {
		problems = append(problems, "Institution is required.")
	}
	return problems
}

func asError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
