// Package mock provides controllable implementations of provision.Supervisor,
// provision.Process, provision.Transferer and provision.Session for testing.
//
// It allows defining expectations for process starts and file transfers,
// enabling deterministic unit tests for code that drives a provision.Controller.
//
// Usage:
//
//	sup := mock.NewSupervisor()
//	proc := new(mock.Process)
//	sup.On("Start", mock.Anything, mock.Anything).Run(mock.EmitLines("done", "")).Return(proc, nil)
//	// pass 'sup' to provision.NewController
package mock
