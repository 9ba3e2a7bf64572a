// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import "fmt"

type State int32

const (
	StateStarting State = iota
	StateWaiting
	StateSending
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateWaiting:
		return "Waiting"
	case StateSending:
		return "Sending"
	case StateDegraded:
		return "Degraded"
	}
	return fmt.Sprintf("Cannot stringify dispatch.State.%d", int(s))
}
