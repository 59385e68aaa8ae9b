// Copyright 2021 The httpx Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package manager

// OnForkBefore fully flushes the registry with reason Default and
// stops the I/O worker, in preparation for a process fork.
func (m *Manager) OnForkBefore() error {
	if err := m.Flush(Default); err != nil {
		return err
	}
	if m.workerCancel != nil {
		m.workerCancel()
		m.workerCancel = nil
	}
	return nil
}

// OnForkAfter restarts the I/O worker after a fork, initially in
// cooperative mode regardless of Options.Cooperative, since the
// platform's thread support may not have survived the fork. It
// assumes OnForkBefore's flush already drained the previous worker,
// so replacing it here loses no in-flight work.
func (m *Manager) OnForkAfter() {
	m.opts.Cooperative = true
	m.startWorker()
}

// OnForkEndFrame promotes a cooperative worker restarted by
// OnForkAfter to a real background thread if supportsThreads reports
// the platform now supports one, at the end of the first frame
// following the fork.
func (m *Manager) OnForkEndFrame(supportsThreads bool) {
	if !supportsThreads || !m.opts.Cooperative {
		return
	}
	m.opts.Cooperative = false
	m.startWorker()
}
