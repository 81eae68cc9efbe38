// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"strings"
)

// Stage is the boot stage the session believes the device is in
type Stage int

const (
	StageDisconnected Stage = iota
	StageIdentifying
	StageBL1
	StageUpdateApplet
	StageDDRConfig // DDR configuration, nested under the update applet
	StageBooting   // terminal
	StageUnsupported
)

func (s Stage) String() string {
	switch s {
	case StageDisconnected:
		return "disconnected"
	case StageIdentifying:
		return "identifying"
	case StageBL1:
		return "bl1"
	case StageUpdateApplet:
		return "update_applet"
	case StageDDRConfig:
		return "ddr_config"
	case StageBooting:
		return "booting"
	case StageUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Terminal reports whether the session can no longer be used
func (s Stage) Terminal() bool {
	return s == StageBooting || s == StageUnsupported
}

// InApplet reports whether the update applet is running
func (s Stage) InApplet() bool {
	return s == StageUpdateApplet || s == StageDDRConfig
}

type constError string

func (err constError) Error() string {
	return string(err)
}

const (
	ErrUnsupportedDevice  = constError("unsupported device, reconnect required")
	ErrResetFailed        = constError("reset failed")
	ErrContinueFailed     = constError("boot continuation failed")
	ErrNotConfirmed       = constError("OTP programming not confirmed")
	ErrAppletNoResponse   = constError("update applet did not announce itself")
	ErrNotSupported       = constError("operation not supported by this platform")
	ErrEncodingNotAllowed = constError("boot ROM does not accept binary uploads")
)

// WrongStageError is returned before any wire interaction when an operation
// is not valid in the current stage
type WrongStageError struct {
	Op    string
	Stage Stage
	Want  []Stage
}

func (e *WrongStageError) Error() string {
	want := make([]string, len(e.Want))
	for i, s := range e.Want {
		want[i] = s.String()
	}
	return fmt.Sprintf("%s: not allowed in stage %s (requires %s)", e.Op, e.Stage, strings.Join(want, " or "))
}
