// Kioskd - Face Recognition Attendance Kiosk Core
// Copyright 2026 Kioskd Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chamcong/kioskd

package duty

import (
	"context"
	"time"
)

// ProcessSuspender is the portable PowerController: it pauses the
// process instead of suspending the host. Deployments with a real
// low-power path (systemd suspend, RTC wake) substitute their own
// controller in main.
type ProcessSuspender struct{}

// Suspend implements PowerController.
func (ProcessSuspender) Suspend(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
