// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package sensor

import (
	"context"
	"time"
)

// Admin exposes the identity-database administration operations as
// self-contained calls: each one acquires its own session and releases
// it before returning. Used by the control dispatcher, which must never
// hold the sensor across command handling.
type Admin struct {
	arb     *Arbiter
	timeout time.Duration
}

// NewAdmin wraps the arbiter for administrative use. timeout bounds the
// acquire wait of each operation.
func NewAdmin(arb *Arbiter, timeout time.Duration) *Admin {
	return &Admin{arb: arb, timeout: timeout}
}

// ClearDatabase wipes the identity database under a private session.
func (a *Admin) ClearDatabase(ctx context.Context) error {
	sess, err := a.arb.Acquire(ctx, a.timeout)
	if err != nil {
		return err
	}
	defer sess.Release()
	return sess.ClearDatabase(ctx)
}

// DumpDatabase lists enrolled identities under a private session.
func (a *Admin) DumpDatabase(ctx context.Context) ([]string, error) {
	sess, err := a.arb.Acquire(ctx, a.timeout)
	if err != nil {
		return nil, err
	}
	defer sess.Release()
	return sess.DumpDatabase(ctx)
}
