// Package system is the wall clock used outside tests.
package system

import "time"

// Clock reports UTC wall time.
type Clock struct{}

func New() *Clock { return &Clock{} }

func (Clock) Now() time.Time { return time.Now().UTC() }
