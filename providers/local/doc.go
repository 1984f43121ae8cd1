// Package local provides an implementation of the provision.Supervisor
// interface for the local operating system.
//
// It is a thin wrapper around the standard library's "os/exec" package that
// launches the remote-shell tool in its own process group, so that a
// terminate request stops the tool together with anything it spawned.
//
// Usage:
//
//	sup := local.New()
//	proc, _ := sup.Start(ctx, &provision.Command{Cmd: "/usr/bin/plink", Args: args})
//	_ = proc.Wait()
package local
