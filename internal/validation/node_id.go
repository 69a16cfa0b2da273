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
	"errors"
	"fmt"
	"regexp"
)

const maxNodeIDLength = 255

// node identifiers are IPs, IP:port pairs or IP+role strings
var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:+\-]*$`)

type nodeIDValidator struct {
	id string
}

var _ Validator = (*nodeIDValidator)(nil)

// NewNodeIDValidator checks a cluster node identifier
func NewNodeIDValidator(id string) Validator {
	return &nodeIDValidator{id: id}
}

func (v *nodeIDValidator) Validate() error {
	if v.id == "" {
		return errors.New("the [nodeID] is required")
	}
	if len(v.id) > maxNodeIDLength {
		return fmt.Errorf("node id=(%s) exceeds %d characters", v.id, maxNodeIDLength)
	}
	if !nodeIDPattern.MatchString(v.id) {
		return fmt.Errorf("node id=(%s) contains invalid characters", v.id)
	}
	return nil
}
