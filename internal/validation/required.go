// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package validation

import (
	"fmt"
	"strings"
	"time"
)

type emptyStringValidator struct {
	field string
	value string
}

var _ Validator = (*emptyStringValidator)(nil)

// NewEmptyStringValidator checks that the named field holds a non blank value
func NewEmptyStringValidator(field, value string) Validator {
	return &emptyStringValidator{field: field, value: value}
}

func (v *emptyStringValidator) Validate() error {
	if strings.TrimSpace(v.value) == "" {
		return fmt.Errorf("the [%s] is required", v.field)
	}
	return nil
}

type durationValidator struct {
	field string
	value time.Duration
}

var _ Validator = (*durationValidator)(nil)

// NewPositiveDurationValidator checks that the named duration is greater than zero
func NewPositiveDurationValidator(field string, value time.Duration) Validator {
	return &durationValidator{field: field, value: value}
}

func (v *durationValidator) Validate() error {
	if v.value <= 0 {
		return fmt.Errorf("the [%s] must be greater than zero, got %s", v.field, v.value)
	}
	return nil
}

type oneOfValidator struct {
	field   string
	value   string
	allowed []string
}

var _ Validator = (*oneOfValidator)(nil)

// NewOneOfValidator checks that value is one of the allowed names
func NewOneOfValidator(field, value string, allowed ...string) Validator {
	return &oneOfValidator{field: field, value: value, allowed: allowed}
}

func (v *oneOfValidator) Validate() error {
	for _, name := range v.allowed {
		if v.value == name {
			return nil
		}
	}
	return fmt.Errorf("the [%s] must be one of [%s], got %q", v.field, strings.Join(v.allowed, ", "), v.value)
}
